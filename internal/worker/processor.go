package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ymakhno/confbak/internal/config"
	"github.com/ymakhno/confbak/internal/connector"
	"github.com/ymakhno/confbak/internal/secrets"
	"github.com/ymakhno/confbak/internal/snapshot"
	"github.com/ymakhno/confbak/internal/store"
	"github.com/ymakhno/confbak/pkg/models"
)

// Processor executes one job end to end: resolve device and credential, open
// the session, capture and sanitize output, evaluate the snapshot, commit the
// version. All connector errors stop inside Process as a Failed version; only
// dispatch errors (unknown job type) propagate untouched.
type Processor struct {
	store        store.Store
	secrets      secrets.Resolver
	connectorCfg config.ConnectorConfig

	// connectorFor is swapped out by tests.
	connectorFor func(models.Protocol) (connector.Connector, error)
}

// NewProcessor creates a new Processor.
func NewProcessor(st store.Store, resolver secrets.Resolver, cfg config.ConnectorConfig) *Processor {
	return &Processor{
		store:        st,
		secrets:      resolver,
		connectorCfg: cfg,
		connectorFor: connector.ForProtocol,
	}
}

// Process dispatches on the job type. Unknown types are a fatal dispatch
// error, never retried.
func (p *Processor) Process(ctx context.Context, job *models.BackupJob) error {
	switch job.Type {
	case models.JobTypeCheckSchedule:
		// Bookkeeping tick only; must not create versions.
		slog.Info("checking backup schedule")
		return nil
	case models.JobTypeCreateBackup:
		return p.runBackup(ctx, job.DeviceID)
	default:
		return fmt.Errorf("unknown job type %q", string(job.Type))
	}
}

// runBackup is the per-device state machine. Everything before ReserveVersion
// aborts without persisting anything; everything after commits the reserved
// version to a terminal state, even on failure.
func (p *Processor) runBackup(ctx context.Context, deviceID uuid.UUID) error {
	target, err := p.store.GetDeviceForBackup(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("lookup device %s: %w", deviceID, err)
	}

	password, err := p.secrets.Resolve(ctx, target.Credential.SecretRef)
	if err != nil {
		return fmt.Errorf("resolve credential for device %s: %w", deviceID, err)
	}

	version, err := p.store.ReserveVersion(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("reserve version: %w", err)
	}
	slog.Info("backup started",
		"device_id", deviceID.String(),
		"version_number", version.VersionNumber,
	)

	outcome, runErr := p.execute(ctx, target, password)
	if runErr != nil {
		if commitErr := p.store.CommitFailure(ctx, version.ID, runErr.Error()); commitErr != nil {
			slog.Error("failed to persist backup failure",
				"device_id", deviceID.String(),
				"version_id", version.ID.String(),
				"error", commitErr,
			)
		}
		return fmt.Errorf("backup device %s: %w", deviceID, runErr)
	}

	if err := p.store.CommitSuccess(ctx, version.ID, outcome); err != nil {
		return fmt.Errorf("commit version %s: %w", version.ID, err)
	}
	slog.Info("backup finished",
		"device_id", deviceID.String(),
		"version_number", version.VersionNumber,
	)
	return nil
}

// execute runs the device session and evaluates the capture. Any error here
// becomes the Failed version's error message.
func (p *Processor) execute(ctx context.Context, target *models.BackupTarget, password string) (store.Outcome, error) {
	conn, err := p.connectorFor(target.Device.Protocol)
	if err != nil {
		return store.Outcome{}, err
	}

	// Inventory rows may carry port 0, meaning "use the protocol default".
	port := target.Device.Port
	if port == 0 {
		port = target.Device.Protocol.DefaultPort()
	}

	sess, err := conn.Open(ctx, connector.Params{
		Host:           target.Device.Host,
		Port:           port,
		Username:       target.Credential.Username,
		Password:       password,
		ConnectTimeout: p.connectorCfg.ConnectTimeout,
		CommandTimeout: p.connectorCfg.CommandTimeout,
	})
	if err != nil {
		return store.Outcome{}, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("session close failed", "host", target.Device.Host, "error", err)
		}
	}()

	raw, err := sess.Run(ctx, target.DeviceType.CommandList())
	if err != nil {
		return store.Outcome{}, err
	}
	sanitized := connector.Sanitize(raw)

	ancestor, err := p.store.CanonicalAncestor(ctx, target.Device.ID)
	if errors.Is(err, store.ErrNotFound) {
		ancestor = nil
	} else if err != nil {
		return store.Outcome{}, err
	}

	res := snapshot.Evaluate(sanitized, ancestor)
	if res.IsDuplicate {
		slog.Info("config unchanged since last version",
			"device_id", target.Device.ID.String(),
			"duplicate_of", res.AncestorID.String(),
		)
		return store.DuplicateOf(res.AncestorID), nil
	}
	return store.Archived(res.Hash, sanitized, res.ChangedLines), nil
}
