package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ymakhno/confbak/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrInvalidTransition = errors.New("invalid version status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	ListDevices(ctx context.Context) ([]*models.Device, error)
	GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error)
	// GetDeviceForBackup returns the device joined with its credential and
	// command template — everything the processor needs for one run.
	GetDeviceForBackup(ctx context.Context, id uuid.UUID) (*models.BackupTarget, error)

	// ReserveVersion creates the Running row with the next version number for
	// the device. The read-and-insert is atomic per device, so numbers are
	// never reused even under near-simultaneous reservation.
	ReserveVersion(ctx context.Context, deviceID uuid.UUID) (*models.ConfigVersion, error)
	CommitSuccess(ctx context.Context, versionID uuid.UUID, outcome Outcome) error
	CommitFailure(ctx context.Context, versionID uuid.UUID, errMsg string) error

	// CanonicalAncestor returns the most recent Success, non-duplicate version
	// for the device: the baseline for hash and diff comparison.
	CanonicalAncestor(ctx context.Context, deviceID uuid.UUID) (*models.ConfigVersion, error)
	ListVersions(ctx context.Context, filter VersionFilter) ([]*models.ConfigVersion, int, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*models.ConfigVersion, error)

	// SweepStaleRunning fails versions stuck in Running longer than cutoff.
	// Crash-orphan reconciliation; returns the number of rows swept.
	SweepStaleRunning(ctx context.Context, cutoff time.Duration) (int, error)
}

// VersionFilter selects successful, non-duplicate versions for a device.
type VersionFilter struct {
	DeviceID uuid.UUID
	Page     int
	Limit    int
}

// Outcome describes how a successful run is persisted. A run is either
// archived (new content: hash + text, optionally a changed-line count) or a
// duplicate of a canonical ancestor (no content, only the back-reference).
// Use the constructors; the zero value is not a valid outcome.
type Outcome struct {
	isDuplicate  bool
	duplicateID  uuid.UUID
	configHash   string
	configText   string
	changedLines *int
}

// Archived builds the outcome for a success that produced new content.
// changedLines is nil when there is no ancestor to diff against.
func Archived(configHash, configText string, changedLines *int) Outcome {
	return Outcome{configHash: configHash, configText: configText, changedLines: changedLines}
}

// DuplicateOf builds the outcome for a success whose content hash matched the
// canonical ancestor's.
func DuplicateOf(ancestorID uuid.UUID) Outcome {
	return Outcome{isDuplicate: true, duplicateID: ancestorID}
}

// Duplicate reports whether the outcome is a duplicate of an ancestor.
func (o Outcome) Duplicate() bool { return o.isDuplicate }

// Ancestor returns the canonical version id a duplicate points at.
func (o Outcome) Ancestor() uuid.UUID { return o.duplicateID }

// Content returns the archived hash and text. Both empty for duplicates.
func (o Outcome) Content() (hash, text string) { return o.configHash, o.configText }

// LineDelta returns the changed-line count, nil when there was no ancestor
// to diff against.
func (o Outcome) LineDelta() *int { return o.changedLines }
