package pseudonym

import (
	"math"
	"testing"
)

func TestCollisionProbability(t *testing.T) {
	if p := CollisionProbability(1, 8); p != 0 {
		t.Fatalf("single record cannot collide, got %v", p)
	}
	if p := CollisionProbability(17, 1); p < 0.99 {
		t.Fatalf("17 records over 16 labels should almost surely collide, got %v", p)
	}
	// 1000 records, 32-bit labels: about n^2/2M = 1.16e-4
	p := CollisionProbability(1000, 8)
	if math.Abs(p-1.163e-4) > 1e-6 {
		t.Fatalf("unexpected probability %v", p)
	}
}

func TestMinSafeTruncation(t *testing.T) {
	small := MinSafeTruncation(3, DefaultMaxCollisionProbability)
	large := MinSafeTruncation(1_000_000, DefaultMaxCollisionProbability)
	if small >= large {
		t.Fatalf("expected larger datasets to need longer labels: %d vs %d", small, large)
	}
	if CollisionProbability(1_000_000, large) > DefaultMaxCollisionProbability {
		t.Fatalf("length %d is not safe", large)
	}
	if CollisionProbability(1_000_000, large-1) <= DefaultMaxCollisionProbability {
		t.Fatalf("length %d is not minimal", large)
	}
}

func TestAdviseShortTruncation(t *testing.T) {
	s := newHash(t, tutorialKey, WithTruncation(4))
	if w := s.Advise(10_000); len(w) != 1 {
		t.Fatalf("expected a warning, got %v", w)
	}
	s = newHash(t, tutorialKey)
	if w := s.Advise(10_000); len(w) != 0 {
		t.Fatalf("expected no warning for full-length labels, got %v", w)
	}
}
