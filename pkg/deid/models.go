package deid

import (
	"time"

	"gorm.io/datatypes"
)

// KeyfileEntry is one keyfile row. Label is empty for hash runs, whose
// labels are recomputed from Identifying instead of stored. Counter and
// random labels are unique per run only, so a label is addressed with its
// run id.
type KeyfileEntry struct {
	ID          string            `gorm:"primaryKey;column:id" json:"id"`
	RunID       string            `gorm:"column:run_id;index;uniqueIndex:idx_keyfile_run_label,priority:1" json:"run_id"`
	RowIndex    int               `gorm:"column:row_index" json:"row_index"`
	Strategy    string            `gorm:"column:strategy" json:"strategy"`
	Label       string            `gorm:"column:label;index;uniqueIndex:idx_keyfile_run_label,priority:2,where:label <> ''" json:"label,omitempty"`
	Identifying datatypes.JSONMap `gorm:"column:identifying;type:jsonb" json:"identifying"`
	CreatedAt   time.Time         `gorm:"column:created_at" json:"created_at"`
}

func (KeyfileEntry) TableName() string {
	return "pseudonym_keyfile"
}

func (e KeyfileEntry) Fields() map[string]string {
	out := make(map[string]string, len(e.Identifying))
	for k, v := range e.Identifying {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
