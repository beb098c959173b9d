package core

import (
	"encoding/binary"
	"io"

	"github.com/tanshoo/mimpi/pkg/mimpi/types"
)

// metaFrameSize is the 8-byte (tag, count) metadata frame of spec section
// 4.1: a 4-byte signed tag followed by a 4-byte signed count, little-endian
// matching the host.
const metaFrameSize = 8

// writeFrame serializes the metadata frame followed by payload into
// successive writes bounded by ChannelBufferSize, per spec section 4.3.
func writeFrame(w io.Writer, tag types.Tag, payload []byte) error {
	meta := make([]byte, metaFrameSize)
	binary.LittleEndian.PutUint32(meta[0:4], uint32(int32(tag)))
	binary.LittleEndian.PutUint32(meta[4:8], uint32(int32(len(payload))))

	framed := make([]byte, 0, len(meta)+len(payload))
	framed = append(framed, meta...)
	framed = append(framed, payload...)
	return writeChunked(w, framed)
}

// writeChunked writes buf in chunks no larger than ChannelBufferSize.
func writeChunked(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > ChannelBufferSize {
			n = ChannelBufferSize
		}
		written, err := w.Write(buf[:n])
		if err != nil {
			return err
		}
		buf = buf[written:]
	}
	return nil
}

// readMetaFrame blocks reading the 8-byte metadata frame. eof is true only
// on a clean end-of-stream (zero bytes read), per spec section 4.1 step 1.
func readMetaFrame(r io.Reader) (tag types.Tag, count int, eof bool, err error) {
	meta := make([]byte, metaFrameSize)
	n, rerr := io.ReadFull(r, meta)
	if rerr != nil {
		if n == 0 && (rerr == io.EOF) {
			return 0, 0, true, nil
		}
		return 0, 0, false, rerr
	}
	tag = types.Tag(int32(binary.LittleEndian.Uint32(meta[0:4])))
	count = int(int32(binary.LittleEndian.Uint32(meta[4:8])))
	return tag, count, false, nil
}

// readPayload fills buf in chunks no larger than ChannelBufferSize. A
// close mid-payload surfaces as io.ErrUnexpectedEOF, signalling the
// internal failure spec section 4.1 step 3 calls for.
func readPayload(r io.Reader, buf []byte) error {
	off := 0
	for off < len(buf) {
		end := off + ChannelBufferSize
		if end > len(buf) {
			end = len(buf)
		}
		n, err := io.ReadFull(r, buf[off:end])
		off += n
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}
