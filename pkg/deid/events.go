package deid

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/synaptica-ai/pseudonym/pkg/common/models"
)

const (
	EventTypeDataset       = "dataset"
	EventTypePseudonymized = "pseudonymized"
)

var ErrInvalidEvent = errors.New("invalid dataset event")

// ParseDatasetEvent reads a run request from an event's "dataset" and
// optional "plan" fields.
func ParseDatasetEvent(event models.Event) (models.PseudonymizeRequest, error) {
	if _, ok := event.Data["dataset"].(map[string]interface{}); !ok {
		return models.PseudonymizeRequest{}, fmt.Errorf("event %s: dataset missing: %w", event.ID, ErrInvalidEvent)
	}
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return models.PseudonymizeRequest{}, fmt.Errorf("event %s: %v: %w", event.ID, err, ErrInvalidEvent)
	}
	var req models.PseudonymizeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return models.PseudonymizeRequest{}, fmt.Errorf("event %s: %v: %w", event.ID, err, ErrInvalidEvent)
	}
	return req, nil
}

// PayloadEvent is what leaves the service on the bus. The keyfile is never
// part of it.
func PayloadEvent(sourceEventID string, resp models.PseudonymizeResponse) map[string]interface{} {
	return map[string]interface{}{
		"original_event_id": sourceEventID,
		"run_id":            resp.RunID,
		"strategy":          resp.Strategy,
		"records":           resp.Records,
		"payload":           resp.Payload,
		"warnings":          resp.Warnings,
	}
}
