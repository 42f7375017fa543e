package pseudonym

// CounterStrategy assigns pool labels in input order: row i gets label i.
type CounterStrategy struct {
	Pool Pool
}

func NewCounterStrategy(pool Pool) *CounterStrategy {
	return &CounterStrategy{Pool: pool}
}

func (s *CounterStrategy) Name() string { return StrategyCounter }

func (s *CounterStrategy) Recomputable() bool { return false }

func (s *CounterStrategy) Assign(identifying [][]string) ([]string, error) {
	return s.Pool.Sequence(len(identifying))
}
