package core

import "testing"

func TestQueue_FindFromScansInOrder(t *testing.T) {
	q := newQueue()
	q.Lock()
	q.pushBack(&Message{Source: 0, Tag: 1, Count: 0})
	q.pushBack(&Message{Source: 1, Tag: 1, Count: 0})
	target := &Message{Source: 2, Tag: 1, Count: 0}
	q.pushBack(target)
	q.Unlock()

	q.Lock()
	e := findFrom(q.front(), pattern{source: 2, tag: 1, count: 0})
	q.Unlock()

	if e == nil || e.Value.(*Message) != target {
		t.Fatalf("expected to find the third pushed message, got %v", e)
	}
}

func TestQueue_RemoveUnlinks(t *testing.T) {
	q := newQueue()
	q.Lock()
	e := q.pushBack(&Message{Source: 0, Tag: 1, Count: 0})
	q.remove(e)
	got := q.front()
	q.Unlock()

	if got != nil {
		t.Fatalf("expected empty queue after removing its only element, got %v", got)
	}
}

func TestQueue_FindFromReturnsNilWhenNoneMatch(t *testing.T) {
	q := newQueue()
	q.Lock()
	q.pushBack(&Message{Source: 0, Tag: 1, Count: 0})
	e := findFrom(q.front(), pattern{source: 9, tag: 1, count: 0})
	q.Unlock()

	if e != nil {
		t.Fatalf("expected no match, got %v", e)
	}
}
