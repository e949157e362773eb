package models

import (
	"time"

	"github.com/google/uuid"
)

// BackupStatus is the lifecycle state of a config version. Running is the
// only non-terminal state; a version moves to Success or Failed exactly once.
type BackupStatus string

const (
	BackupStatusRunning BackupStatus = "Running"
	BackupStatusSuccess BackupStatus = "Success"
	BackupStatusFailed  BackupStatus = "Failed"
)

// Terminal reports whether the status is an end state.
func (s BackupStatus) Terminal() bool {
	return s == BackupStatusSuccess || s == BackupStatusFailed
}

// ConfigVersion is one backup attempt for a device. Append-only: rows are
// created in Running state with a reserved version number before the session
// opens, then committed once to a terminal state.
//
// Field population is state-dependent:
//   - Running: no output fields, FinishedAt nil
//   - Success non-duplicate: ConfigText and ConfigHash both set
//   - Success duplicate: neither text nor hash; DuplicateID points at the
//     canonical version this one repeats
//   - Failed: only Error set
type ConfigVersion struct {
	ID            uuid.UUID    `db:"id"             json:"id"`
	DeviceID      uuid.UUID    `db:"device_id"      json:"device_id"`
	VersionNumber int          `db:"version_number" json:"version_number"`
	Status        BackupStatus `db:"status"         json:"status"`
	StartedAt     time.Time    `db:"started_at"     json:"started_at"`
	FinishedAt    *time.Time   `db:"finished_at"    json:"finished_at,omitempty"`
	ConfigText    *string      `db:"config_text"    json:"config_text,omitempty"`
	ConfigHash    *string      `db:"config_hash"    json:"config_hash,omitempty"`
	ChangedLines  *int         `db:"changed_lines"  json:"changed_lines,omitempty"`
	IsDuplicate   bool         `db:"is_duplicate"   json:"is_duplicate"`
	DuplicateID   *uuid.UUID   `db:"duplicate_id"   json:"duplicate_id,omitempty"`
	Error         *string      `db:"error"          json:"error,omitempty"`
}
