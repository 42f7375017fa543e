package labelpool

import (
	"context"
	"fmt"

	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

type Taker interface {
	Take(ctx context.Context, id string, n int) ([]string, error)
}

// Strategy assigns labels popped from a stored pool. Labels taken by a failed
// run are not returned to the pool.
type Strategy struct {
	ctx    context.Context
	taker  Taker
	poolID string
	name   string
}

func NewStrategy(ctx context.Context, taker Taker, poolID, name string) *Strategy {
	return &Strategy{ctx: ctx, taker: taker, poolID: poolID, name: name}
}

func (s *Strategy) Name() string {
	if s.name == "" {
		return "pool"
	}
	return s.name
}

func (s *Strategy) Recomputable() bool { return false }

func (s *Strategy) Assign(identifying [][]string) ([]string, error) {
	labels, err := s.taker.Take(s.ctx, s.poolID, len(identifying))
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", s.poolID, err)
	}
	return labels, nil
}

var _ pseudonym.Strategy = (*Strategy)(nil)
