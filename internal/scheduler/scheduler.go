// Package scheduler ticks on cron boundaries and enqueues recurring backup
// jobs for devices whose schedule came due since the previous tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/ymakhno/confbak/internal/queue"
	"github.com/ymakhno/confbak/pkg/models"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// bookkeepingCron keeps the schedule-check job recurring on the hour. The
// worker seeds the first run at startup; every later run comes from here.
const bookkeepingCron = "0 * * * *"

// Validate checks a cron expression and timezone pair before it enters the
// schedule registry, so the tick loop never meets an unparsable entry.
func Validate(cronExpr, timezone string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return nil
}

// Scheduler drives recurring backups. It holds no schedule state of its own:
// every tick reads the registry fresh, so upserts and removals take effect on
// the next minute boundary without coordination.
type Scheduler struct {
	queue queue.Queue
	tick  time.Duration
}

// New creates a Scheduler ticking once a minute.
func New(q queue.Queue) *Scheduler {
	return &Scheduler{queue: q, tick: time.Minute}
}

// Run blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.fireDue(ctx, prev, now)
			prev = now
		}
	}
}

// fireDue enqueues a backup for every device whose cron schedule has an
// activation inside (prev, now]. An identity conflict means a run for that
// device is still queued or executing; the tick is skipped, not queued up.
func (s *Scheduler) fireDue(ctx context.Context, prev, now time.Time) {
	s.fireBookkeeping(ctx, prev, now)

	schedules, err := s.queue.ListSchedules(ctx)
	if err != nil {
		slog.Error("list schedules failed", "error", err)
		return
	}

	for deviceID, sched := range schedules {
		due, err := dueInWindow(sched, prev, now)
		if err != nil {
			slog.Error("unreadable schedule",
				"device_id", deviceID.String(),
				"cron", sched.Cron,
				"error", err,
			)
			continue
		}
		if !due {
			continue
		}
		s.enqueue(ctx, deviceID)
	}
}

// fireBookkeeping re-enqueues the schedule-check job when the window crosses
// the top of the hour. Check jobs carry no identity key, so re-enqueueing
// never conflicts.
func (s *Scheduler) fireBookkeeping(ctx context.Context, prev, now time.Time) {
	due, err := dueInWindow(queue.Schedule{Cron: bookkeepingCron, Timezone: "UTC"}, prev, now)
	if err != nil || !due {
		return
	}
	if err := s.queue.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCheckSchedule}); err != nil {
		slog.Error("enqueue schedule check failed", "error", err)
		return
	}
	slog.Info("schedule check enqueued")
}

func (s *Scheduler) enqueue(ctx context.Context, deviceID uuid.UUID) {
	err := s.queue.Enqueue(ctx, models.BackupJob{
		Type:     models.JobTypeCreateBackup,
		DeviceID: deviceID,
	})
	switch {
	case errors.Is(err, queue.ErrConflict):
		slog.Info("scheduled backup skipped, previous run still active",
			"device_id", deviceID.String())
	case err != nil:
		slog.Error("enqueue scheduled backup failed",
			"device_id", deviceID.String(), "error", err)
	default:
		slog.Info("scheduled backup enqueued", "device_id", deviceID.String())
	}
}

// dueInWindow reports whether the schedule fires in (prev, now], evaluated in
// the schedule's own timezone.
func dueInWindow(sched queue.Schedule, prev, now time.Time) (bool, error) {
	expr, err := cronParser.Parse(sched.Cron)
	if err != nil {
		return false, err
	}
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		return false, err
	}
	next := expr.Next(prev.In(loc))
	return !next.After(now.In(loc)), nil
}
