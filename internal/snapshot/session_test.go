package snapshot

import (
	"errors"
	"testing"
	"time"
)

func TestSessionPublishAndSubscribe(t *testing.T) {
	session := NewSession(Config{})

	session.Publish(&Snapshot{Body: "one"})

	listener := session.Subscribe()
	defer listener.Cancel()

	if len(listener.Replay) != 1 || listener.Replay[0].Body != "one" {
		t.Fatalf("late subscriber should replay history: %#v", listener.Replay)
	}

	session.Publish(&Snapshot{Body: "two"})
	select {
	case snap := <-listener.C:
		if snap.Body != "two" {
			t.Fatalf("unexpected snapshot %#v", snap)
		}
		if snap.Sequence <= listener.Replay[0].Sequence {
			t.Fatalf("sequence must increase")
		}
	case <-time.After(time.Second):
		t.Fatalf("snapshot not delivered")
	}

	if session.Last().Body != "two" {
		t.Fatalf("last snapshot not tracked")
	}
}

func TestSessionPublishAfterCloseIsNoop(t *testing.T) {
	session := NewSession(Config{})
	session.Publish(&Snapshot{Body: "kept"})
	session.Close(nil)

	session.Publish(&Snapshot{Body: "dropped"})

	if session.Last().Body != "kept" {
		t.Fatalf("publish after close must not replace the last snapshot")
	}
	if stats := session.StatsSnapshot(); stats.Published != 1 {
		t.Fatalf("unexpected publish count %d", stats.Published)
	}

	state, err := session.State()
	if state != StateClosed || err != nil {
		t.Fatalf("unexpected state %v (%v)", state, err)
	}
}

func TestSessionCloseWithError(t *testing.T) {
	session := NewSession(Config{})
	failure := errors.New("boom")

	listener := session.Subscribe()
	session.Close(failure)

	select {
	case _, ok := <-listener.C:
		if ok {
			t.Fatalf("close should close listener channels")
		}
	case <-time.After(time.Second):
		t.Fatalf("listener not closed")
	}

	state, err := session.State()
	if state != StateFailed || !errors.Is(err, failure) {
		t.Fatalf("unexpected state %v (%v)", state, err)
	}

	select {
	case <-session.Done():
	default:
		t.Fatalf("done channel not closed")
	}

	// idempotent
	session.Close(nil)
	if state, _ := session.State(); state != StateFailed {
		t.Fatalf("second close must not change state, got %v", state)
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	session := NewSession(Config{})
	session.Publish(&Snapshot{Body: "only"})
	session.Close(nil)

	listener := session.Subscribe()
	if len(listener.Replay) != 1 {
		t.Fatalf("replay should survive close: %#v", listener.Replay)
	}
	if _, ok := <-listener.C; ok {
		t.Fatalf("listener on a closed session must be closed")
	}
}

func TestDropOldestPolicy(t *testing.T) {
	session := NewSession(Config{ListenerBuffer: 1, DropPolicy: DropOldest})
	listener := session.Subscribe()
	defer listener.Cancel()

	session.Publish(&Snapshot{Body: "first"})
	session.Publish(&Snapshot{Body: "second"})

	snap := <-listener.C
	if snap.Body != "second" {
		t.Fatalf("drop-oldest should keep the newest snapshot, got %q", snap.Body)
	}
	select {
	case extra := <-listener.C:
		t.Fatalf("discarded snapshot was still delivered: %#v", extra)
	default:
	}
}

func TestDropNewestPolicy(t *testing.T) {
	session := NewSession(Config{ListenerBuffer: 1, DropPolicy: DropNewest})
	listener := session.Subscribe()
	defer listener.Cancel()

	session.Publish(&Snapshot{Body: "first"})
	session.Publish(&Snapshot{Body: "second"})

	snap := <-listener.C
	if snap.Body != "first" {
		t.Fatalf("drop-newest should keep the oldest snapshot, got %q", snap.Body)
	}
	if stats := session.StatsSnapshot(); stats.Dropped != 1 {
		t.Fatalf("expected one recorded drop, got %d", stats.Dropped)
	}
}

func TestRingBufferWraps(t *testing.T) {
	buf := newRingBuffer(2)
	buf.append(&Snapshot{Body: "a"})
	buf.append(&Snapshot{Body: "b"})
	buf.append(&Snapshot{Body: "c"})

	items := buf.snapshot()
	if len(items) != 2 || items[0].Body != "b" || items[1].Body != "c" {
		t.Fatalf("unexpected buffer contents %#v", items)
	}
}

func TestSnapshotClone(t *testing.T) {
	original := &Snapshot{Body: "x", Headers: map[string][]string{"A": {"1"}}}
	clone := original.Clone()
	clone.Headers.Set("A", "2")
	if original.Headers.Get("A") != "1" {
		t.Fatalf("clone must not share headers")
	}
}
