package deid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrEntryNotFound  = errors.New("keyfile entry not found")
	ErrAmbiguousLabel = errors.New("label assigned in more than one run")
)

const insertBatchSize = 500

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&KeyfileEntry{})
}

// KeyfileEntries converts a keyfile table into rows. labelColumn is ignored
// when the keyfile carries no labels.
func KeyfileEntries(runID, strategy string, keyfile pseudonym.Table, labelColumn string) []KeyfileEntry {
	labelPos := -1
	for i, c := range keyfile.Columns {
		if c == labelColumn {
			labelPos = i
		}
	}
	now := time.Now().UTC()
	entries := make([]KeyfileEntry, len(keyfile.Rows))
	for i, row := range keyfile.Rows {
		identifying := make(datatypes.JSONMap, len(row))
		label := ""
		for j, cell := range row {
			if j == labelPos {
				label = cell
				continue
			}
			identifying[keyfile.Columns[j]] = cell
		}
		entries[i] = KeyfileEntry{
			ID:          uuid.New().String(),
			RunID:       runID,
			RowIndex:    i,
			Strategy:    strategy,
			Label:       label,
			Identifying: identifying,
			CreatedAt:   now,
		}
	}
	return entries
}

func (r *Repository) SaveKeyfile(ctx context.Context, entries []KeyfileEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(entries, insertBatchSize).Error; err != nil {
		return fmt.Errorf("save keyfile: %w", err)
	}
	return nil
}

func (r *Repository) LookupLabel(ctx context.Context, runID, label string) (KeyfileEntry, error) {
	var entry KeyfileEntry
	err := r.db.WithContext(ctx).Where("run_id = ? AND label = ?", runID, label).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KeyfileEntry{}, ErrEntryNotFound
	}
	return entry, err
}

// FindLabel returns up to limit entries carrying label, across runs.
func (r *Repository) FindLabel(ctx context.Context, label string, limit int) ([]KeyfileEntry, error) {
	var entries []KeyfileEntry
	result := r.db.WithContext(ctx).
		Where("label = ?", label).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries)
	return entries, result.Error
}

func (r *Repository) ListRun(ctx context.Context, runID string, limit int) ([]KeyfileEntry, error) {
	if limit <= 0 {
		limit = 1000
	}
	var entries []KeyfileEntry
	result := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("row_index ASC").
		Limit(limit).
		Find(&entries)
	return entries, result.Error
}

func (r *Repository) DeleteRun(ctx context.Context, runID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("run_id = ?", runID).Delete(&KeyfileEntry{})
	return result.RowsAffected, result.Error
}
