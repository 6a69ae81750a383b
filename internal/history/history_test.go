package history

import (
	"fmt"
	"testing"
)

func TestPushAndSnapshot(t *testing.T) {
	l := New(0)

	l.Push(RoleUser, "hello")
	l.Push(RoleAssistant, "hi there")

	got := l.Snapshot()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Role != RoleUser || got[0].Text != "hello" {
		t.Errorf("entry 0 = %+v, want user/hello", got[0])
	}
	if got[1].Role != RoleAssistant || got[1].Text != "hi there" {
		t.Errorf("entry 1 = %+v, want assistant/hi there", got[1])
	}
}

func TestDefaultCap(t *testing.T) {
	l := New(0)
	if l.Max() != DefaultMaxEntries {
		t.Errorf("Max() = %d, want %d", l.Max(), DefaultMaxEntries)
	}
	if l.Max() != 40 {
		t.Errorf("default cap = %d, want 40", l.Max())
	}
}

func TestEvictionKeepsNewestInOrder(t *testing.T) {
	l := New(4)

	for i := 0; i < 10; i++ {
		l.Push(RoleUser, fmt.Sprintf("entry-%d", i))
	}

	got := l.Snapshot()
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	// Survivors are exactly the 4 most recent pushes, original order.
	for i, want := range []string{"entry-6", "entry-7", "entry-8", "entry-9"} {
		if got[i].Text != want {
			t.Errorf("entry %d = %q, want %q", i, got[i].Text, want)
		}
	}
}

func TestCapNeverExceeded(t *testing.T) {
	l := New(40)

	// 41 pushes one at a time — the final length is 40 and the oldest entry
	// is the one evicted.
	for i := 0; i < 41; i++ {
		l.Push(RoleUser, fmt.Sprintf("entry-%d", i))
		if n := l.Len(); n > 40 {
			t.Fatalf("after push %d: len = %d, cap breached", i, n)
		}
	}

	got := l.Snapshot()
	if len(got) != 40 {
		t.Fatalf("final len = %d, want 40", len(got))
	}
	if got[0].Text != "entry-1" {
		t.Errorf("oldest survivor = %q, want entry-1 (entry-0 evicted)", got[0].Text)
	}
	if got[39].Text != "entry-40" {
		t.Errorf("newest = %q, want entry-40", got[39].Text)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l := New(8)
	l.Push(RoleUser, "original")

	snap := l.Snapshot()
	snap[0].Text = "mutated"

	if l.Snapshot()[0].Text != "original" {
		t.Error("mutating a snapshot must not affect the log")
	}
}

func TestReset(t *testing.T) {
	l := New(8)
	l.Push(RoleUser, "a")
	l.Push(RoleAssistant, "b")

	l.Reset()

	if l.Len() != 0 {
		t.Errorf("len after Reset = %d, want 0", l.Len())
	}
}
