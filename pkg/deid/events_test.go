package deid

import (
	"errors"
	"fmt"
	"testing"

	"github.com/synaptica-ai/pseudonym/pkg/common/models"
	"github.com/synaptica-ai/pseudonym/pkg/dlp"
	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

func TestParseDatasetEvent(t *testing.T) {
	event := models.Event{
		ID:   "evt-1",
		Type: EventTypeDataset,
		Data: map[string]interface{}{
			"dataset": map[string]interface{}{
				"columns": []interface{}{"name", "score"},
				"rows":    []interface{}{[]interface{}{"Betty Davis", "12"}},
			},
			"plan": map[string]interface{}{
				"strategy":        "counter",
				"prefix":          "PP",
				"id_columns":      []interface{}{"name"},
				"payload_columns": []interface{}{"score"},
			},
		},
	}
	req, err := ParseDatasetEvent(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Plan.Strategy != pseudonym.StrategyCounter || req.Dataset.Rows[0][0] != "Betty Davis" {
		t.Fatalf("unexpected request %+v", req)
	}

	if _, err := ParseDatasetEvent(models.Event{ID: "evt-2", Data: map[string]interface{}{}}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for missing dataset, got %v", err)
	}
}

func TestPayloadEventExcludesKeyfile(t *testing.T) {
	keyfile := pseudonym.Table{Columns: []string{"name"}, Rows: [][]string{{"Betty Davis"}}}
	data := PayloadEvent("evt-1", models.PseudonymizeResponse{RunID: "run-1", Keyfile: &keyfile})
	if _, ok := data["keyfile"]; ok {
		t.Fatal("keyfile must not be published")
	}
	if data["run_id"] != "run-1" {
		t.Fatalf("unexpected event data %v", data)
	}
}

func TestIsInputError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid event", fmt.Errorf("event evt-1: %w", ErrInvalidEvent), true},
		{"unknown column", fmt.Errorf("plan: %w", pseudonym.ErrUnknownColumn), true},
		{"duplicate tuple", pseudonym.ErrNonUniqueIdentifyingTuple, true},
		{"capacity", pseudonym.ErrCapacityExceeded, true},
		{"payload leak", dlp.ErrPayloadLeak, true},
		{"missing key", pseudonym.ErrMissingKey, false},
		{"store outage", fmt.Errorf("save keyfile: %w", errors.New("connection refused")), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsInputError(tc.err); got != tc.want {
				t.Fatalf("IsInputError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
