package models

import (
	"time"

	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // dataset, pseudonymized
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Pseudonymization runs
type PseudonymizeRequest struct {
	Dataset pseudonym.Dataset `json:"dataset"`
	Plan    pseudonym.Plan    `json:"plan"`
}

type PseudonymizeResponse struct {
	RunID    string          `json:"run_id"`
	Strategy string          `json:"strategy"`
	Payload  pseudonym.Table `json:"payload"`
	Records  int             `json:"records"`
	Warnings []string        `json:"warnings,omitempty"`
	// KeyfileStored is false when the caller asked for the keyfile inline.
	KeyfileStored bool             `json:"keyfile_stored"`
	Keyfile       *pseudonym.Table `json:"keyfile,omitempty"`
}

type RecomputeRequest struct {
	Fields     []string `json:"fields"`
	Algorithm  string   `json:"algorithm,omitempty"`
	TruncateTo *int     `json:"truncate_to,omitempty"`
	Separator  string   `json:"separator,omitempty"`
}

type RecomputeResponse struct {
	Label string `json:"label"`
}

type ReidentifyResponse struct {
	RunID       string            `json:"run_id"`
	Label       string            `json:"label"`
	Identifying map[string]string `json:"identifying"`
}

type RunKeyfileResponse struct {
	RunID    string               `json:"run_id"`
	Strategy string               `json:"strategy"`
	Entries  []ReidentifyResponse `json:"entries"`
}

type PurgeResponse struct {
	RunID   string `json:"run_id"`
	Deleted int64  `json:"deleted"`
}

// Label pools
type CreatePoolRequest struct {
	Strategy string `json:"strategy"` // counter, random
	Prefix   string `json:"prefix"`
	Size     int    `json:"size"`
	Width    int    `json:"width,omitempty"`
	Seed     *int64 `json:"seed,omitempty"`
}

type PoolResponse struct {
	PoolID    string    `json:"pool_id"`
	Strategy  string    `json:"strategy"`
	Size      int       `json:"size"`
	Remaining int64     `json:"remaining"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AssignRequest struct {
	Dataset        pseudonym.Dataset `json:"dataset"`
	IDColumns      []string          `json:"id_columns"`
	PayloadColumns []string          `json:"payload_columns"`
	LabelColumn    string            `json:"label_column,omitempty"`
}
