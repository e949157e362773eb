package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ymakhno/confbak/internal/queue"
	"github.com/ymakhno/confbak/pkg/models"
)

// setupQueue backs a RedisQueue with an in-process redis server.
func setupQueue(t *testing.T) *queue.RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return queue.NewRedisQueueFromClient(client)
}

func TestPing(t *testing.T) {
	q := setupQueue(t)
	assert.NoError(t, q.Ping(context.Background()))
}

func TestEnqueueDequeue_Roundtrip(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	deviceID := uuid.New()

	err := q.Enqueue(ctx, models.BackupJob{
		Type:     models.JobTypeCreateBackup,
		DeviceID: deviceID,
	})
	require.NoError(t, err)

	job, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.JobTypeCreateBackup, job.Type)
	assert.Equal(t, deviceID, job.DeviceID)
	assert.NotEqual(t, uuid.Nil, job.ID, "enqueue assigns a job id")
}

func TestDequeue_FIFO(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	require.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: first}))
	require.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: second}))

	job, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, job.DeviceID)

	job, ok, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, job.DeviceID)
}

func TestDequeue_EmptyQueue(t *testing.T) {
	q := setupQueue(t)

	job, ok, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, job)
}

func TestEnqueue_SecondTriggerConflicts(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	deviceID := uuid.New()

	require.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: deviceID}))

	err := q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: deviceID})
	assert.ErrorIs(t, err, queue.ErrConflict)
}

func TestEnqueue_ConflictIsPerDevice(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: uuid.New()}))
	assert.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: uuid.New()}))
}

func TestEnqueue_ConflictEnqueuesNothing(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	deviceID := uuid.New()

	require.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: deviceID}))
	require.ErrorIs(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: deviceID}), queue.ErrConflict)

	// Exactly one job on the queue.
	_, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRelease_FreesIdentity(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	deviceID := uuid.New()

	require.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: deviceID}))
	require.NoError(t, q.Release(ctx, deviceID))

	assert.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCreateBackup, DeviceID: deviceID}))
}

func TestRelease_UnclaimedDevice(t *testing.T) {
	q := setupQueue(t)
	assert.NoError(t, q.Release(context.Background(), uuid.New()))
}

func TestEnqueue_ScheduleTickCarriesNoIdentity(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	// Bookkeeping ticks never conflict with each other.
	require.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCheckSchedule}))
	assert.NoError(t, q.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCheckSchedule}))
}

func TestEnqueue_UnknownJobType(t *testing.T) {
	q := setupQueue(t)

	err := q.Enqueue(context.Background(), models.BackupJob{Type: "restore_backup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore_backup")
}

func TestSchedules_UpsertAndList(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	deviceID := uuid.New()

	sched := queue.Schedule{Cron: "0 3 * * *", Timezone: "Europe/Kyiv"}
	require.NoError(t, q.UpsertSchedule(ctx, deviceID, sched))

	schedules, err := q.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, sched, schedules[deviceID])
}

func TestSchedules_UpsertReplaces(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	deviceID := uuid.New()

	require.NoError(t, q.UpsertSchedule(ctx, deviceID, queue.Schedule{Cron: "0 3 * * *", Timezone: "UTC"}))
	require.NoError(t, q.UpsertSchedule(ctx, deviceID, queue.Schedule{Cron: "30 4 * * 1", Timezone: "Europe/Kyiv"}))

	schedules, err := q.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "30 4 * * 1", schedules[deviceID].Cron)
	assert.Equal(t, "Europe/Kyiv", schedules[deviceID].Timezone)
}

func TestSchedules_Remove(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	deviceID := uuid.New()

	require.NoError(t, q.UpsertSchedule(ctx, deviceID, queue.Schedule{Cron: "0 0 * * *", Timezone: "UTC"}))
	require.NoError(t, q.RemoveSchedule(ctx, deviceID))

	schedules, err := q.ListSchedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, schedules)
}

func TestSchedules_RemoveMissingIsIdempotent(t *testing.T) {
	q := setupQueue(t)
	assert.NoError(t, q.RemoveSchedule(context.Background(), uuid.New()))
}

func TestSchedules_EmptyRegistry(t *testing.T) {
	q := setupQueue(t)

	schedules, err := q.ListSchedules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, schedules)
}
