package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ymakhno/confbak/internal/queue"
	"github.com/ymakhno/confbak/pkg/models"
)

const dequeueWait = 5 * time.Second

// Pool is a fixed-size set of executors pulling jobs off the shared queue in
// FIFO order. A job's failure is logged and the executor moves on; nothing a
// job does takes the pool down.
type Pool struct {
	queue       queue.Queue
	processor   *Processor
	concurrency int
}

// NewPool creates a pool of concurrency executors.
func NewPool(q queue.Queue, processor *Processor, concurrency int) *Pool {
	return &Pool{queue: q, processor: processor, concurrency: concurrency}
}

// Run blocks until ctx is canceled and every executor has drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.serve(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) serve(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, ok, err := p.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("dequeue failed", "executor", id, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		p.run(ctx, id, job)
	}
}

func (p *Pool) run(ctx context.Context, id int, job *models.BackupJob) {
	// The identity must come free once this job is terminal, success or
	// failure, or the device could never be backed up again. Release uses a
	// fresh context so a shutdown mid-job cannot leave the key claimed.
	if job.Type == models.JobTypeCreateBackup {
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.queue.Release(releaseCtx, job.DeviceID); err != nil {
				slog.Error("release job identity failed",
					"job_id", job.ID.String(),
					"device_id", job.DeviceID.String(),
					"error", err,
				)
			}
		}()
	}

	if err := p.processor.Process(ctx, job); err != nil {
		slog.Error("job failed",
			"executor", id,
			"job_id", job.ID.String(),
			"job_type", string(job.Type),
			"error", err,
		)
	}
}
