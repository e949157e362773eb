package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ymakhno/confbak/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const deviceColumns = `id, name, host, port, protocol, device_type_id, credential_id, is_active, backup_schedule, created_at, updated_at`

const versionColumns = `id, device_id, version_number, status, started_at, finished_at, config_text, config_hash, changed_lines, is_duplicate, duplicate_id, error`

// --- Devices ---

func (s *PostgresStore) ListDevices(ctx context.Context) ([]*models.Device, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *PostgresStore) GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) GetDeviceForBackup(ctx context.Context, id uuid.UUID) (*models.BackupTarget, error) {
	var t models.BackupTarget
	err := s.pool.QueryRow(ctx,
		`SELECT d.id, d.name, d.host, d.port, d.protocol, d.device_type_id, d.credential_id,
		        d.is_active, d.backup_schedule, d.created_at, d.updated_at,
		        c.id, c.username, c.secret_ref, c.created_at,
		        t.id, t.vendor, t.commands
		 FROM devices d
		 JOIN credentials c ON c.id = d.credential_id
		 JOIN device_types t ON t.id = d.device_type_id
		 WHERE d.id = $1`, id,
	).Scan(&t.Device.ID, &t.Device.Name, &t.Device.Host, &t.Device.Port, &t.Device.Protocol,
		&t.Device.DeviceTypeID, &t.Device.CredentialID, &t.Device.IsActive,
		&t.Device.BackupSchedule, &t.Device.CreatedAt, &t.Device.UpdatedAt,
		&t.Credential.ID, &t.Credential.Username, &t.Credential.SecretRef, &t.Credential.CreatedAt,
		&t.DeviceType.ID, &t.DeviceType.Vendor, &t.DeviceType.Commands)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device for backup: %w", err)
	}
	return &t, nil
}

// --- Config versions ---

func (s *PostgresStore) ReserveVersion(ctx context.Context, deviceID uuid.UUID) (*models.ConfigVersion, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the device row so two reservations for the same device serialize
	// and the MAX read below cannot race.
	var devID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM devices WHERE id = $1 FOR UPDATE`, deviceID).Scan(&devID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock device: %w", err)
	}

	v := &models.ConfigVersion{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		Status:    models.BackupStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO config_versions (id, device_id, version_number, status, started_at)
		 SELECT $1, $2, 1 + COALESCE(MAX(version_number), 0), $3, $4
		 FROM config_versions WHERE device_id = $2
		 RETURNING version_number`,
		v.ID, deviceID, v.Status, v.StartedAt,
	).Scan(&v.VersionNumber)
	if err != nil {
		return nil, fmt.Errorf("reserve version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) CommitSuccess(ctx context.Context, versionID uuid.UUID, outcome Outcome) error {
	var tag string
	var err error
	now := time.Now().UTC()

	if outcome.isDuplicate {
		tag = "commit duplicate"
		_, err = s.guardedUpdate(ctx, versionID,
			`UPDATE config_versions
			 SET status = $2, finished_at = $3, is_duplicate = TRUE, duplicate_id = $4
			 WHERE id = $1 AND status = $5`,
			versionID, models.BackupStatusSuccess, now, outcome.duplicateID, models.BackupStatusRunning)
	} else {
		tag = "commit success"
		_, err = s.guardedUpdate(ctx, versionID,
			`UPDATE config_versions
			 SET status = $2, finished_at = $3, config_text = $4, config_hash = $5, changed_lines = $6
			 WHERE id = $1 AND status = $7`,
			versionID, models.BackupStatusSuccess, now, outcome.configText, outcome.configHash,
			outcome.changedLines, models.BackupStatusRunning)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}
	return nil
}

func (s *PostgresStore) CommitFailure(ctx context.Context, versionID uuid.UUID, errMsg string) error {
	_, err := s.guardedUpdate(ctx, versionID,
		`UPDATE config_versions
		 SET status = $2, finished_at = $3, error = $4
		 WHERE id = $1 AND status = $5`,
		versionID, models.BackupStatusFailed, time.Now().UTC(), errMsg, models.BackupStatusRunning)
	if err != nil {
		return fmt.Errorf("commit failure: %w", err)
	}
	return nil
}

// guardedUpdate runs an update that only applies to a Running row. When no
// row changes it distinguishes a missing version from a finished one.
func (s *PostgresStore) guardedUpdate(ctx context.Context, versionID uuid.UUID, query string, args ...any) (int64, error) {
	cmd, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	if cmd.RowsAffected() > 0 {
		return cmd.RowsAffected(), nil
	}

	var status models.BackupStatus
	err = s.pool.QueryRow(ctx, `SELECT status FROM config_versions WHERE id = $1`, versionID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if status.Terminal() {
		return 0, fmt.Errorf("%w: version already %s", ErrInvalidTransition, status)
	}
	return 0, fmt.Errorf("%w: version is %s, not %s", ErrInvalidTransition, status, models.BackupStatusRunning)
}

func (s *PostgresStore) CanonicalAncestor(ctx context.Context, deviceID uuid.UUID) (*models.ConfigVersion, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM config_versions
		 WHERE device_id = $1 AND status = $2 AND is_duplicate = FALSE
		 ORDER BY version_number DESC LIMIT 1`,
		deviceID, models.BackupStatusSuccess)
	v, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("canonical ancestor: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, filter VersionFilter) ([]*models.ConfigVersion, int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM config_versions
		 WHERE device_id = $1 AND status = $2 AND is_duplicate = FALSE`,
		filter.DeviceID, models.BackupStatusSuccess).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count versions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM config_versions
		 WHERE device_id = $1 AND status = $2 AND is_duplicate = FALSE
		 ORDER BY version_number DESC LIMIT $3 OFFSET $4`,
		filter.DeviceID, models.BackupStatusSuccess, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.ConfigVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, err
		}
		versions = append(versions, v)
	}
	return versions, total, rows.Err()
}

func (s *PostgresStore) GetVersion(ctx context.Context, id uuid.UUID) (*models.ConfigVersion, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM config_versions WHERE id = $1`, id)
	v, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) SweepStaleRunning(ctx context.Context, cutoff time.Duration) (int, error) {
	now := time.Now().UTC()
	cmd, err := s.pool.Exec(ctx,
		`UPDATE config_versions
		 SET status = $1, finished_at = $2, error = 'abandoned by worker'
		 WHERE status = $3 AND started_at < $4`,
		models.BackupStatusFailed, now, models.BackupStatusRunning, now.Add(-cutoff))
	if err != nil {
		return 0, fmt.Errorf("sweep stale running: %w", err)
	}
	return int(cmd.RowsAffected()), nil
}

// --- scan helpers ---

func scanDevice(row pgx.Row) (*models.Device, error) {
	var d models.Device
	err := row.Scan(&d.ID, &d.Name, &d.Host, &d.Port, &d.Protocol, &d.DeviceTypeID,
		&d.CredentialID, &d.IsActive, &d.BackupSchedule, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanVersion(row pgx.Row) (*models.ConfigVersion, error) {
	var v models.ConfigVersion
	err := row.Scan(&v.ID, &v.DeviceID, &v.VersionNumber, &v.Status, &v.StartedAt,
		&v.FinishedAt, &v.ConfigText, &v.ConfigHash, &v.ChangedLines,
		&v.IsDuplicate, &v.DuplicateID, &v.Error)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
