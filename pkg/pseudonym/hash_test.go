package pseudonym

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

const tutorialKey = "pseudonymization-tutorial-key"

func newHash(t *testing.T, key string, opts ...HashOption) *HashStrategy {
	t.Helper()
	s, err := NewHashStrategy(NewSecret([]byte(key)), opts...)
	if err != nil {
		t.Fatalf("failed to create hash strategy: %v", err)
	}
	return s
}

func TestHashKnownDigest(t *testing.T) {
	tests := []struct {
		name string
		opts []HashOption
		want string
	}{
		{"hmac full", nil, "27670c785dec43ac92ffa03f944ce652df4b76df36898b8ff76cbc806a7fcf16"},
		{"hmac truncated", []HashOption{WithTruncation(8)}, "27670c78"},
		{"blake2b", []HashOption{WithAlgorithm(AlgorithmBLAKE2b)}, "c00c25e5d47589c16e6eb6b81030acb07f3da8b83b2fece32e93418c64406011"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for run := 0; run < 2; run++ {
				got, err := newHash(t, tutorialKey, tc.opts...).Label([]string{"Betty Davis1944-07-26F"})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tc.want {
					t.Fatalf("run %d: expected %s, got %s", run, tc.want, got)
				}
			}
		})
	}
}

func TestHashMatchesHMAC(t *testing.T) {
	fields := []string{"Betty Davis", "1944-07-26", "F"}
	got, err := newHash(t, tutorialKey).Label(fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mac := hmac.New(sha256.New, []byte(tutorialKey))
	mac.Write([]byte(strings.Join(fields, DefaultSeparator)))
	if want := hex.EncodeToString(mac.Sum(nil)); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got != "8ef35e140f6e6d7ad0e56eeffd3ca5a9f35a2fbd5aff2c0706cb28a720aa2bd5" {
		t.Fatalf("unexpected digest %s", got)
	}
}

func TestHashKeyAndFieldSensitivity(t *testing.T) {
	records := [][]string{
		{"Betty Davis", "1944-07-26", "F"},
		{"Cary Grant", "1904-01-18", "M"},
	}
	base, err := newHash(t, "key-one").Assign(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	otherKey, err := newHash(t, "key-two").Assign(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range base {
		if base[i] == otherKey[i] {
			t.Fatalf("record %d: changing the key did not change the label", i)
		}
	}

	changed := [][]string{records[0], {"Cary Grant", "1904-01-19", "M"}}
	relabeled, err := newHash(t, "key-one").Assign(changed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if relabeled[0] != base[0] {
		t.Fatal("unchanged record got a different label")
	}
	if relabeled[1] == base[1] {
		t.Fatal("changed field did not change the label")
	}
}

func TestCanonicalSeparatorSafety(t *testing.T) {
	labels, err := newHash(t, tutorialKey).Assign([][]string{
		{"AB", "C"},
		{"A", "BC"},
	})
	if err != nil {
		t.Fatalf("expected distinct canonical forms, got %v", err)
	}
	if labels[0] == labels[1] {
		t.Fatal("ambiguous tuples hashed to the same label")
	}

	_, err = newHash(t, tutorialKey).Assign([][]string{{"A" + DefaultSeparator + "B", "C"}})
	if !errors.Is(err, ErrAmbiguousCanonicalForm) {
		t.Fatalf("expected ErrAmbiguousCanonicalForm, got %v", err)
	}
}

func TestHashMissingKey(t *testing.T) {
	if _, err := NewHashStrategy(nil); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey for nil key, got %v", err)
	}
	if _, err := NewHashStrategy(NewSecret(nil)); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey for empty key, got %v", err)
	}
}

func TestHashKeyDestroyedAfterPass(t *testing.T) {
	key := NewSecret([]byte(tutorialKey))
	s, err := NewHashStrategy(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Assign([][]string{{"x"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Available() {
		t.Fatal("expected key to be destroyed after the hash pass")
	}
	if _, err := s.Assign([][]string{{"x"}}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey on reuse, got %v", err)
	}
}

func TestHashNonUniqueTuple(t *testing.T) {
	_, err := newHash(t, tutorialKey).Assign([][]string{
		{"Betty Davis", "1944-07-26", "F"},
		{"Betty Davis", "1944-07-26", "F"},
	})
	if !errors.Is(err, ErrNonUniqueIdentifyingTuple) {
		t.Fatalf("expected ErrNonUniqueIdentifyingTuple, got %v", err)
	}
}

func TestHashTruncationCollision(t *testing.T) {
	// 300 records over 16 one-character labels must collide.
	records := make([][]string, 300)
	for i := range records {
		records[i] = []string{strings.Repeat("x", i+1)}
	}
	_, err := newHash(t, tutorialKey, WithTruncation(1)).Assign(records)
	if !errors.Is(err, ErrLabelCollision) {
		t.Fatalf("expected ErrLabelCollision, got %v", err)
	}
}

func TestHashInvalidOptions(t *testing.T) {
	if _, err := NewHashStrategy(NewSecret([]byte("k")), WithTruncation(65)); !errors.Is(err, ErrInvalidTruncation) {
		t.Fatalf("expected ErrInvalidTruncation, got %v", err)
	}
	if _, err := NewHashStrategy(NewSecret([]byte("k")), WithAlgorithm("md5")); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestSecretRedacted(t *testing.T) {
	s := NewSecret([]byte("super-secret"))
	if strings.Contains(s.String(), "super") {
		t.Fatal("secret leaked through String")
	}
}
