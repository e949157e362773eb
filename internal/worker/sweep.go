package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ymakhno/confbak/internal/store"
)

// Sweeper periodically fails versions stuck in Running. A version only stays
// in Running when the process crashed between reserve and commit, so anything
// older than the cutoff is an orphan, not work in progress.
type Sweeper struct {
	store    store.Store
	interval time.Duration
	cutoff   time.Duration
}

// NewSweeper creates a Sweeper running every interval with the given cutoff.
func NewSweeper(st store.Store, interval, cutoff time.Duration) *Sweeper {
	return &Sweeper{store: st, interval: interval, cutoff: cutoff}
}

// Run blocks until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.SweepStaleRunning(ctx, s.cutoff)
			if err != nil {
				slog.Error("stale version sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Warn("swept stale running versions", "count", n)
			}
		}
	}
}
