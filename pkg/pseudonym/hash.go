package pseudonym

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

type Algorithm string

const (
	AlgorithmHMACSHA256 Algorithm = "hmac-sha256"
	AlgorithmBLAKE2b    Algorithm = "blake2b-256"

	// both supported algorithms produce 32-byte digests
	fullHexLength = 64
)

func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", AlgorithmHMACSHA256:
		return AlgorithmHMACSHA256, nil
	case AlgorithmBLAKE2b:
		return AlgorithmBLAKE2b, nil
	default:
		return "", fmt.Errorf("%q: %w", name, ErrUnknownAlgorithm)
	}
}

func (a Algorithm) newMAC(key []byte) (hash.Hash, error) {
	switch a {
	case "", AlgorithmHMACSHA256:
		return hmac.New(sha256.New, key), nil
	case AlgorithmBLAKE2b:
		return blake2b.New256(key)
	default:
		return nil, fmt.Errorf("%q: %w", a, ErrUnknownAlgorithm)
	}
}

// HashStrategy derives each label from the record's canonical identifying
// string and a secret key. One strategy performs one pass: the key is
// destroyed when Assign returns, successful or not.
type HashStrategy struct {
	key           *Secret
	Algorithm     Algorithm
	TruncateTo    int
	Canonicalizer Canonicalizer
}

type HashOption func(*HashStrategy)

func WithAlgorithm(a Algorithm) HashOption {
	return func(s *HashStrategy) { s.Algorithm = a }
}

func WithTruncation(n int) HashOption {
	return func(s *HashStrategy) { s.TruncateTo = n }
}

func WithSeparator(sep string) HashOption {
	return func(s *HashStrategy) { s.Canonicalizer.Separator = sep }
}

func NewHashStrategy(key *Secret, opts ...HashOption) (*HashStrategy, error) {
	if !key.Available() {
		return nil, ErrMissingKey
	}
	s := &HashStrategy{key: key, Algorithm: AlgorithmHMACSHA256}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := ParseAlgorithm(string(s.Algorithm)); err != nil {
		return nil, err
	}
	if s.TruncateTo < 0 || s.TruncateTo > fullHexLength {
		return nil, fmt.Errorf("%d not in [0, %d]: %w", s.TruncateTo, fullHexLength, ErrInvalidTruncation)
	}
	return s, nil
}

func (s *HashStrategy) Name() string { return StrategyHash }

// Destroy zeroes the key. Assign calls it; Pseudonymize also calls it when a
// run fails before Assign.
func (s *HashStrategy) Destroy() { s.key.Destroy() }

func (s *HashStrategy) Recomputable() bool { return true }

func (s *HashStrategy) Assign(identifying [][]string) ([]string, error) {
	defer s.Destroy()

	canon := make([]string, len(identifying))
	seen := make(map[string]int, len(identifying))
	for i, fields := range identifying {
		c, err := s.Canonicalizer.Canonical(fields)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if first, dup := seen[c]; dup {
			return nil, fmt.Errorf("rows %d and %d: %w", first, i, ErrNonUniqueIdentifyingTuple)
		}
		seen[c] = i
		canon[i] = c
	}

	labels := make([]string, len(canon))
	err := s.key.Use(func(key []byte) error {
		for i, c := range canon {
			mac, err := s.Algorithm.newMAC(key)
			if err != nil {
				return err
			}
			mac.Write([]byte(c))
			labels[i] = s.truncate(hex.EncodeToString(mac.Sum(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := checkUnique(labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// Label recomputes the label for a single set of identifying fields.
func (s *HashStrategy) Label(fields []string) (string, error) {
	labels, err := s.Assign([][]string{fields})
	if err != nil {
		return "", err
	}
	return labels[0], nil
}

// Advise reports truncations shorter than the birthday bound for n records.
func (s *HashStrategy) Advise(n int) []string {
	if s.TruncateTo == 0 {
		return nil
	}
	safe := MinSafeTruncation(n, DefaultMaxCollisionProbability)
	if s.TruncateTo >= safe {
		return nil
	}
	return []string{fmt.Sprintf(
		"truncation to %d hex characters gives a %.2g collision probability for %d records; use at least %d",
		s.TruncateTo, CollisionProbability(n, s.TruncateTo), n, safe,
	)}
}

func (s *HashStrategy) truncate(digest string) string {
	if s.TruncateTo > 0 && s.TruncateTo < len(digest) {
		return digest[:s.TruncateTo]
	}
	return digest
}

func checkUnique(labels []string) error {
	seen := make(map[string]int, len(labels))
	for i, l := range labels {
		if first, dup := seen[l]; dup {
			return fmt.Errorf("rows %d and %d share %q: %w", first, i, l, ErrLabelCollision)
		}
		seen[l] = i
	}
	return nil
}
