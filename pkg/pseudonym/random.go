package pseudonym

import "math/rand"

// RandomStrategy assigns a uniformly shuffled copy of the counter sequence.
// It owns its random source and is not safe for concurrent use; give each
// run its own instance.
type RandomStrategy struct {
	Pool Pool
	rng  *rand.Rand
}

func NewRandomStrategy(pool Pool, seed int64) *RandomStrategy {
	return NewRandomStrategyWithSource(pool, rand.NewSource(seed))
}

func NewRandomStrategyWithSource(pool Pool, src rand.Source) *RandomStrategy {
	return &RandomStrategy{Pool: pool, rng: rand.New(src)}
}

func (s *RandomStrategy) Name() string { return StrategyRandom }

func (s *RandomStrategy) Recomputable() bool { return false }

func (s *RandomStrategy) Assign(identifying [][]string) ([]string, error) {
	return s.Generate(len(identifying))
}

func (s *RandomStrategy) Generate(n int) ([]string, error) {
	labels, err := s.Pool.Sequence(n)
	if err != nil {
		return nil, err
	}
	Shuffle(s.rng, labels)
	return labels, nil
}

// Shuffle is an in-place Fisher-Yates permutation.
func Shuffle(rng *rand.Rand, labels []string) {
	for i := len(labels) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		labels[i], labels[j] = labels[j], labels[i]
	}
}
