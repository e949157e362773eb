package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ymakhno/confbak/pkg/models"
)

// ErrConflict means a backup job for the device is already queued or running.
var ErrConflict = errors.New("backup already in progress")

// identityTTL is the crash backstop on the per-device job identity key. The
// worker releases the key after the terminal commit; the TTL only matters
// when a worker dies mid-job, so it is deliberately generous.
const identityTTL = time.Hour

// Schedule is a per-device recurring trigger: a cron expression evaluated in
// a fixed timezone.
type Schedule struct {
	Cron     string `json:"cron"`
	Timezone string `json:"tz"`
}

// Queue is the durable work queue plus the schedule registry. The per-device
// job identity key is the only concurrency-control primitive in the system:
// a second enqueue for the same device is rejected until the first job
// reaches a terminal state and releases the identity.
//
// Implementations must be safe for concurrent use.
type Queue interface {
	Ping(ctx context.Context) error

	// Enqueue pushes a job. For create-backup jobs it first claims the
	// device's identity key and returns ErrConflict if already claimed.
	Enqueue(ctx context.Context, job models.BackupJob) error
	// Dequeue blocks up to timeout for the next job, FIFO. The second return
	// is false when the timeout elapsed with nothing to do.
	Dequeue(ctx context.Context, timeout time.Duration) (*models.BackupJob, bool, error)
	// Release frees the device's job identity. Called by the worker after a
	// terminal commit, success or failure alike.
	Release(ctx context.Context, deviceID uuid.UUID) error

	// UpsertSchedule replaces the device's recurring schedule. Idempotent:
	// at most one schedule exists per device.
	UpsertSchedule(ctx context.Context, deviceID uuid.UUID, sched Schedule) error
	RemoveSchedule(ctx context.Context, deviceID uuid.UUID) error
	ListSchedules(ctx context.Context) (map[uuid.UUID]Schedule, error)

	Close() error
}

// RedisQueue implements Queue using go-redis/v9: a list for the FIFO queue,
// SET NX keys for job identity, and a hash for the schedule registry.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a new RedisQueue from a Redis URL.
func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{client: redis.NewClient(opts)}, nil
}

// NewRedisQueueFromClient wraps an existing client. Used by tests.
func NewRedisQueueFromClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Enqueue(ctx context.Context, job models.BackupJob) error {
	if err := job.Type.Validate(); err != nil {
		return err
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	if job.Type == models.JobTypeCreateBackup {
		claimed, err := q.client.SetNX(ctx, JobIdentityKey(job.DeviceID), 1, identityTTL).Result()
		if err != nil {
			return fmt.Errorf("claim job identity: %w", err)
		}
		if !claimed {
			return ErrConflict
		}
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, QueueKey(), payload).Err(); err != nil {
		// Roll back the identity claim so the failed enqueue does not block
		// future triggers.
		if job.Type == models.JobTypeCreateBackup {
			q.client.Del(ctx, JobIdentityKey(job.DeviceID))
		}
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*models.BackupJob, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, QueueKey()).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("dequeue job: %w", err)
	}

	// BRPOP returns [key, value].
	var job models.BackupJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, false, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, true, nil
}

func (q *RedisQueue) Release(ctx context.Context, deviceID uuid.UUID) error {
	return q.client.Del(ctx, JobIdentityKey(deviceID)).Err()
}

func (q *RedisQueue) UpsertSchedule(ctx context.Context, deviceID uuid.UUID, sched Schedule) error {
	payload, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	if err := q.client.HSet(ctx, ScheduleHashKey(), deviceID.String(), payload).Err(); err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

func (q *RedisQueue) RemoveSchedule(ctx context.Context, deviceID uuid.UUID) error {
	if err := q.client.HDel(ctx, ScheduleHashKey(), deviceID.String()).Err(); err != nil {
		return fmt.Errorf("remove schedule: %w", err)
	}
	return nil
}

func (q *RedisQueue) ListSchedules(ctx context.Context) (map[uuid.UUID]Schedule, error) {
	entries, err := q.client.HGetAll(ctx, ScheduleHashKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	schedules := make(map[uuid.UUID]Schedule, len(entries))
	for field, raw := range entries {
		deviceID, err := uuid.Parse(field)
		if err != nil {
			return nil, fmt.Errorf("parse schedule device id %q: %w", field, err)
		}
		var sched Schedule
		if err := json.Unmarshal([]byte(raw), &sched); err != nil {
			return nil, fmt.Errorf("unmarshal schedule for %s: %w", field, err)
		}
		schedules[deviceID] = sched
	}
	return schedules, nil
}
