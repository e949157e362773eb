package models

import (
	"fmt"

	"github.com/google/uuid"
)

// JobType discriminates queue payloads. The set is closed; the worker treats
// anything else as a fatal, non-retryable dispatch error.
type JobType string

const (
	// JobTypeCreateBackup runs a full backup session for one device.
	JobTypeCreateBackup JobType = "create_backup"
	// JobTypeCheckSchedule is a bookkeeping tick. It never creates versions.
	JobTypeCheckSchedule JobType = "check_schedule"
)

// Validate returns an error for job types outside the closed set.
func (t JobType) Validate() error {
	switch t {
	case JobTypeCreateBackup, JobTypeCheckSchedule:
		return nil
	default:
		return fmt.Errorf("unknown job type %q", string(t))
	}
}

// BackupJob is the queue payload. ID is assigned at enqueue time and only
// used for log correlation; DeviceID is zero for schedule ticks.
type BackupJob struct {
	ID       uuid.UUID `json:"id"`
	Type     JobType   `json:"type"`
	DeviceID uuid.UUID `json:"device_id,omitempty"`
}
