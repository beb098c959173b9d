package core

import (
	"testing"

	"github.com/tanshoo/mimpi/pkg/mimpi/types"
)

func TestMatch_ExactTag(t *testing.T) {
	m := &Message{Source: 1, Tag: 5, Count: 4}
	pat := pattern{source: 1, tag: 5, count: 4}
	if !match(pat, m) {
		t.Fatalf("expected exact tag/source/count to match")
	}
}

func TestMatch_WildcardOnlyMatchesPositiveTags(t *testing.T) {
	positive := &Message{Source: 0, Tag: 7, Count: 0}
	pat := pattern{source: 0, tag: types.TagWildcard, count: 0}
	if !match(pat, positive) {
		t.Fatalf("wildcard pattern should match any positive tag")
	}

	control := &Message{Source: 0, Tag: types.TagGroupBegin, Count: 0}
	if match(pat, control) {
		t.Fatalf("wildcard pattern must not match a control tag")
	}

	zero := &Message{Source: 0, Tag: types.TagWildcard, Count: 0}
	if !match(pat, zero) {
		t.Fatalf("a tag-0 message should match a tag-0 pattern by exact equality")
	}
}

func TestMatch_SourceAndCountMustAgree(t *testing.T) {
	m := &Message{Source: 2, Tag: 1, Count: 8}

	if match(pattern{source: 3, tag: 1, count: 8}, m) {
		t.Fatalf("mismatched source must not match")
	}
	if match(pattern{source: 2, tag: 1, count: 4}, m) {
		t.Fatalf("mismatched count must not match")
	}
}

func TestMatch_ControlTagsRequireExactMatch(t *testing.T) {
	m := &Message{Source: 1, Tag: types.TagGroupFail, Count: 0}
	if !match(pattern{source: 1, tag: types.TagGroupFail, count: 0}, m) {
		t.Fatalf("identical control tag should match")
	}
	if match(pattern{source: 1, tag: types.TagPeerLeaving, count: 0}, m) {
		t.Fatalf("distinct control tags must never match each other")
	}
}
