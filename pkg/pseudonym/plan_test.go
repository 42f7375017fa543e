package pseudonym

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadPlanAndRun(t *testing.T) {
	path := writeFile(t, "plan.yaml", `
strategy: random
prefix: PP
pool_size: 999
seed: 11
id_columns: [name, dob, gender]
payload_columns: [height, weight, score]
`)
	plan, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Seed == nil || *plan.Seed != 11 {
		t.Fatalf("expected seed 11, got %v", plan.Seed)
	}
	a, err := plan.Run(participants(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := plan.Run(participants(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			t.Fatal("seeded plan is not reproducible")
		}
	}
}

func TestPlanHashRequiresKey(t *testing.T) {
	plan := Plan{Strategy: StrategyHash, IDColumns: idColumns, PayloadColumns: payloadColumns}
	if _, err := plan.Run(participants(), nil); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	res, err := plan.Run(participants(), NewSecret([]byte(tutorialKey)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Strategy != StrategyHash {
		t.Fatalf("expected hash strategy, got %s", res.Strategy)
	}
}

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		want error
	}{
		{"unknown strategy", Plan{Strategy: "rot13", IDColumns: idColumns}, ErrUnknownStrategy},
		{"no id columns", Plan{Strategy: StrategyCounter}, ErrNoIdentifyingColumns},
		{"bad algorithm", Plan{Strategy: StrategyHash, Algorithm: "sha1", IDColumns: idColumns}, ErrUnknownAlgorithm},
		{"bad truncation", Plan{Strategy: StrategyHash, TruncateTo: Truncate(-1), IDColumns: idColumns}, ErrInvalidTruncation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.plan.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadSecret(t *testing.T) {
	path := writeFile(t, "key", tutorialKey+"\n")
	key, err := LoadSecret(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := NewHashStrategy(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Label([]string{"Betty Davis1944-07-26F"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "27670c785dec43ac92ffa03f944ce652df4b76df36898b8ff76cbc806a7fcf16" {
		t.Fatalf("trailing newline leaked into the key: %s", got)
	}
	if _, err := LoadSecret(""); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}
