package core

import (
	"bytes"
	"testing"

	"github.com/tanshoo/mimpi/pkg/mimpi/types"
)

func TestWireFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello, mimpi")

	if err := writeFrame(&buf, 42, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	tag, count, eof, err := readMetaFrame(&buf)
	if err != nil || eof {
		t.Fatalf("readMetaFrame: tag=%d count=%d eof=%v err=%v", tag, count, eof, err)
	}
	if tag != 42 {
		t.Errorf("tag = %d, want 42", tag)
	}
	if count != len(payload) {
		t.Errorf("count = %d, want %d", count, len(payload))
	}

	got := make([]byte, count)
	if err := readPayload(&buf, got); err != nil {
		t.Fatalf("readPayload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestWireFrame_ZeroPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, types.TagGroupBegin, nil); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	tag, count, eof, err := readMetaFrame(&buf)
	if err != nil || eof {
		t.Fatalf("readMetaFrame: eof=%v err=%v", eof, err)
	}
	if tag != types.TagGroupBegin || count != 0 {
		t.Fatalf("got tag=%d count=%d, want tag=%d count=0", tag, count, types.TagGroupBegin)
	}
}

func TestReadMetaFrame_CleanEOF(t *testing.T) {
	var buf bytes.Buffer
	_, _, eof, err := readMetaFrame(&buf)
	if err != nil {
		t.Fatalf("expected no error on clean EOF, got %v", err)
	}
	if !eof {
		t.Fatalf("expected eof=true reading an empty stream")
	}
}

func TestWireFrame_ChunksLargerThanBufferSize(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte{0xAB}, ChannelBufferSize*3+17)

	if err := writeFrame(&buf, 1, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	_, count, _, err := readMetaFrame(&buf)
	if err != nil {
		t.Fatalf("readMetaFrame: %v", err)
	}
	got := make([]byte, count)
	if err := readPayload(&buf, got); err != nil {
		t.Fatalf("readPayload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload corrupted across chunk boundaries")
	}
}
