package core

import "github.com/tanshoo/mimpi/pkg/mimpi/types"

// Message is one parsed wire frame sitting in the queue: it is produced by
// exactly one receiver goroutine and consumed by exactly one matching Recv
// call.
//
// A Message is either fully buffered (ready is closed and Payload holds the
// full frame) or still being buffered (ready is open, a receiver goroutine
// is still copying bytes off the wire into Payload). A Recv caller must not
// read Payload until ready is closed.
type Message struct {
	Source  int
	Tag     types.Tag
	Count   int
	Payload []byte

	// ready is the one-shot buffered-flag gate: closed exactly once, by
	// the receiver goroutine that owns this message, after Payload has
	// been fully populated.
	ready chan struct{}
}

func newMessage(source int, tag types.Tag, count int) *Message {
	return &Message{
		Source: source,
		Tag:    tag,
		Count:  count,
		ready:  make(chan struct{}),
	}
}

// markBuffered releases the buffered-flag, allowing any Recv caller that
// already unlinked this message to read Payload.
func (m *Message) markBuffered() {
	close(m.ready)
}

// awaitBuffered blocks until the receiver goroutine that owns this message
// has finished copying its payload.
func (m *Message) awaitBuffered() {
	<-m.ready
}

// pattern is the {source, count, tag} triple a Recv call is looking for.
type pattern struct {
	source int
	tag    types.Tag
	count  int
}

// match implements the matching predicate of spec section 4.2:
//
//	match(P, M) <=> P.source == M.source && P.count == M.count &&
//	                (P.tag == M.tag || (P.tag == wildcard && M.tag > 0))
//
// Tag 0 on the receive side is the user-level wildcard for any positive
// tag; negative tags never satisfy a wildcard receive.
func match(p pattern, m *Message) bool {
	if p.source != m.Source || p.count != m.Count {
		return false
	}
	if p.tag == m.Tag {
		return true
	}
	return p.tag == types.TagWildcard && m.Tag > 0
}
