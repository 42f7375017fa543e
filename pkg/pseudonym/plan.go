package pseudonym

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Plan is a declarative pseudonymization job: one strategy and the column
// partition it applies to.
type Plan struct {
	Strategy       string   `yaml:"strategy" json:"strategy"`
	Prefix         string   `yaml:"prefix" json:"prefix,omitempty"`
	PoolSize       int      `yaml:"pool_size" json:"pool_size,omitempty"`
	PadWidth       int      `yaml:"pad_width" json:"pad_width,omitempty"`
	Seed           *int64   `yaml:"seed" json:"seed,omitempty"`
	Algorithm      string   `yaml:"algorithm" json:"algorithm,omitempty"`
	TruncateTo     *int     `yaml:"truncate_to" json:"truncate_to,omitempty"`
	Separator      string   `yaml:"separator" json:"separator,omitempty"`
	LabelColumn    string   `yaml:"label_column" json:"label_column,omitempty"`
	IDColumns      []string `yaml:"id_columns" json:"id_columns"`
	PayloadColumns []string `yaml:"payload_columns" json:"payload_columns"`
}

func LoadPlan(path string) (Plan, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Plan{}, err
	}
	var plan Plan
	if err := yaml.Unmarshal(content, &plan); err != nil {
		return Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	return plan, plan.Validate()
}

func (p Plan) Validate() error {
	switch p.Strategy {
	case StrategyCounter, StrategyRandom:
	case StrategyHash:
		if _, err := ParseAlgorithm(p.Algorithm); err != nil {
			return err
		}
		if n := p.Truncation(); n < 0 || n > fullHexLength {
			return fmt.Errorf("truncate_to %d: %w", n, ErrInvalidTruncation)
		}
	default:
		return fmt.Errorf("%q: %w", p.Strategy, ErrUnknownStrategy)
	}
	if len(p.IDColumns) == 0 {
		return ErrNoIdentifyingColumns
	}
	return checkPartition(p.IDColumns, p.PayloadColumns, p.labelColumn())
}

// Truncate returns n as an explicit truncate_to value. An explicit 0 keeps
// the full digest even where a default truncation applies.
func Truncate(n int) *int { return &n }

// Truncation is the hash truncation length, 0 when unset.
func (p Plan) Truncation() int {
	if p.TruncateTo == nil {
		return 0
	}
	return *p.TruncateTo
}

func (p Plan) Pool() Pool {
	return Pool{Prefix: p.Prefix, Size: p.PoolSize, Width: p.PadWidth}
}

func (p Plan) labelColumn() string {
	if p.LabelColumn == "" {
		return DefaultLabelColumn
	}
	return p.LabelColumn
}

// Build returns a fresh strategy for one run. key is only consulted for the
// hash strategy.
func (p Plan) Build(key *Secret) (Strategy, error) {
	switch p.Strategy {
	case StrategyCounter:
		return NewCounterStrategy(p.Pool()), nil
	case StrategyRandom:
		var seed int64
		if p.Seed != nil {
			seed = *p.Seed
		} else {
			s, err := entropySeed()
			if err != nil {
				return nil, err
			}
			seed = s
		}
		return NewRandomStrategy(p.Pool(), seed), nil
	case StrategyHash:
		algo, err := ParseAlgorithm(p.Algorithm)
		if err != nil {
			return nil, err
		}
		return NewHashStrategy(key,
			WithAlgorithm(algo),
			WithTruncation(p.Truncation()),
			WithSeparator(p.Separator),
		)
	default:
		return nil, fmt.Errorf("%q: %w", p.Strategy, ErrUnknownStrategy)
	}
}

// Run builds a strategy from the plan and pseudonymizes dataset with it.
// key is destroyed when Run returns.
func (p Plan) Run(dataset Dataset, key *Secret) (*Result, error) {
	defer key.Destroy()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	strategy, err := p.Build(key)
	if err != nil {
		return nil, err
	}
	return Pseudonymize(dataset, strategy, p.IDColumns, p.PayloadColumns, WithLabelColumn(p.LabelColumn))
}

func entropySeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("seed random source: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
