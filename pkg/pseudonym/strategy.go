package pseudonym

import (
	"fmt"
	"strconv"
)

const (
	StrategyCounter = "counter"
	StrategyRandom  = "random"
	StrategyHash    = "hash"

	DefaultPoolSize    = 999
	DefaultLabelColumn = "pseudonym"
)

// Strategy produces one label per record, positionally aligned with the input.
type Strategy interface {
	Name() string
	Assign(identifying [][]string) ([]string, error)
	// Recomputable reports whether labels can be re-derived from identifying
	// fields, in which case the keyfile omits them.
	Recomputable() bool
}

// Pool describes the label space shared by the counter and random strategies.
type Pool struct {
	Prefix string
	Size   int
	// Width is the zero-padding width. Zero derives it from Size.
	Width int
}

func (p Pool) size() int {
	if p.Size <= 0 {
		return DefaultPoolSize
	}
	return p.Size
}

func (p Pool) width() int {
	if p.Width > 0 {
		return p.Width
	}
	return len(strconv.Itoa(p.size()))
}

// Label renders the i-th label of the pool, 1-based.
func (p Pool) Label(i int) string {
	return fmt.Sprintf("%s%0*d", p.Prefix, p.width(), i)
}

// Sequence returns the first n labels of the pool in increasing order.
func (p Pool) Sequence(n int) ([]string, error) {
	if n < 0 {
		n = 0
	}
	if n > p.size() {
		return nil, fmt.Errorf("%d records for a pool of %d: %w", n, p.size(), ErrCapacityExceeded)
	}
	if p.width() < len(strconv.Itoa(n)) {
		return nil, fmt.Errorf("width %d cannot hold %d: %w", p.width(), n, ErrCapacityExceeded)
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = p.Label(i + 1)
	}
	return labels, nil
}
