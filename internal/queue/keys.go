package queue

import (
	"fmt"

	"github.com/google/uuid"
)

// QueueKey is the Redis list holding pending jobs.
func QueueKey() string {
	return "confbak:queue:backup"
}

// JobIdentityKey is the per-device dedup key: claimed on enqueue, released
// after the terminal commit.
func JobIdentityKey(deviceID uuid.UUID) string {
	return fmt.Sprintf("backup:%s", deviceID)
}

// ScheduleHashKey is the Redis hash mapping device id to its cron schedule.
func ScheduleHashKey() string {
	return "confbak:schedules"
}
