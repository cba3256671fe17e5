package bitmap

import "testing"

func TestFindFirstIdleOrdering(t *testing.T) {
	b := New()
	for _, i := range []int{5, 10, 63, 200} {
		b.SetInitialized(i)
		b.SetIdle(i)
	}
	if got := b.FindFirstIdle(); got != 5 {
		t.Fatalf("expected first idle 5, got %d", got)
	}
	b.ClearIdle(5)
	if got := b.FindFirstIdle(); got != 10 {
		t.Fatalf("expected first idle 10, got %d", got)
	}
}

func TestIdleIsSubsetOfInitialized(t *testing.T) {
	b := New()
	b.SetIdle(3) // not yet initialized — must be ignored
	if b.IsIdle(3) {
		t.Fatal("idle bit set without initialized bit")
	}
}

func TestClaimIdleClearsBit(t *testing.T) {
	b := New()
	b.SetInitialized(7)
	b.SetIdle(7)
	if got := b.ClaimIdle(); got != 7 {
		t.Fatalf("expected to claim 7, got %d", got)
	}
	if b.IsIdle(7) {
		t.Fatal("claimed worker still marked idle")
	}
	if b.ClaimIdle() != -1 {
		t.Fatal("expected no idle workers left")
	}
}

func TestSharedClaimIdleNoDoubleClaim(t *testing.T) {
	s := NewShared()
	s.SetInitialized(0)
	s.SetIdle(0)

	a := s.ClaimIdle()
	b := s.ClaimIdle()
	if a != 0 || b != -1 {
		t.Fatalf("expected exactly one claim to succeed, got a=%d b=%d", a, b)
	}
}
