package pseudonym

import (
	"errors"
	"sort"
	"testing"
)

func TestRandomIsPermutationOfCounter(t *testing.T) {
	pool := Pool{Prefix: "PP", Size: 999}
	for _, n := range []int{0, 1, 2, 50, 999} {
		base, err := pool.Sequence(n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		got, err := NewRandomStrategy(pool, 42).Generate(n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		sorted := append([]string(nil), got...)
		sort.Strings(sorted)
		for i := range base {
			if sorted[i] != base[i] {
				t.Fatalf("n=%d: label sets differ at %d: %s vs %s", n, i, sorted[i], base[i])
			}
		}
	}
}

func TestRandomSeedReproducible(t *testing.T) {
	pool := Pool{Prefix: "PP", Size: 999}
	a, _ := NewRandomStrategy(pool, 7).Generate(100)
	b, _ := NewRandomStrategy(pool, 7).Generate(100)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different orders at %d", i)
		}
	}

	c, _ := NewRandomStrategy(pool, 8).Generate(100)
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical orders")
	}
}

func TestRandomCapacityExceeded(t *testing.T) {
	s := NewRandomStrategy(Pool{Size: 10}, 1)
	if _, err := s.Assign(make([][]string, 11)); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestShuffleCoversAllPositions(t *testing.T) {
	s := NewRandomStrategy(Pool{Size: 3}, 99)
	firsts := map[string]bool{}
	for i := 0; i < 200; i++ {
		labels, err := s.Generate(3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		firsts[labels[0]] = true
	}
	if len(firsts) != 3 {
		t.Fatalf("expected every label to appear first at least once, got %v", firsts)
	}
}
