package eventbus

import (
	"testing"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(2)
	c, unsubC := b.Subscribe(2)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: JobClaimed, Data: Change{WorkspaceID: 1}})
	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		if e.Type != JobClaimed || e.Time.IsZero() {
			t.Fatalf("event = %+v", e)
		}
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	if got := Dropped(b); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
}

func TestUnsubscribeCloses(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	b.Publish(Event{Type: "after"})
}

func TestHasPrefix(t *testing.T) {
	t.Parallel()
	if !HasPrefix(Event{Type: JobClosed}, "job") || HasPrefix(Event{Type: "jobs.x"}, "job") {
		t.Fatalf("HasPrefix mismatch")
	}
}
