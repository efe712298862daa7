package txslot

import "testing"

func TestSlotAcquireRelease(t *testing.T) {
	s := New()

	if _, ok := s.Current(); ok {
		t.Fatalf("fresh slot reports a current transaction")
	}

	s.Acquire(5)
	tx, ok := s.Current()
	if !ok || tx != 5 {
		t.Fatalf("Current() = (%v, %v), want (5, true)", tx, ok)
	}

	s.Release(5)
	if _, ok := s.Current(); ok {
		t.Fatalf("slot still holds a transaction after Release")
	}
}

func TestSlotReleaseMismatchIsNoop(t *testing.T) {
	s := New()
	s.Acquire(1)
	s.Release(2) // different tx: must not clear slot 1

	tx, ok := s.Current()
	if !ok || tx != 1 {
		t.Fatalf("Current() = (%v, %v), want (1, true) after mismatched release", tx, ok)
	}
}
