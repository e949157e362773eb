// Package main is the entrypoint for the confbak backup worker: the cron
// scheduler, the executor pool, and the stale-version sweeper in one process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ymakhno/confbak/internal/config"
	"github.com/ymakhno/confbak/internal/queue"
	"github.com/ymakhno/confbak/internal/scheduler"
	"github.com/ymakhno/confbak/internal/secrets"
	"github.com/ymakhno/confbak/internal/store"
	"github.com/ymakhno/confbak/internal/worker"
	"github.com/ymakhno/confbak/pkg/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"concurrency", cfg.Worker.Concurrency,
		"secrets_provider", cfg.Secrets.Provider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	backupQueue, err := queue.NewRedisQueue(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer backupQueue.Close()

	if err := backupQueue.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	resolver, err := secrets.NewResolver(ctx, cfg.Secrets)
	if err != nil {
		return fmt.Errorf("create secrets resolver: %w", err)
	}

	pgStore := store.NewPostgresStore(pool)
	processor := worker.NewProcessor(pgStore, resolver, cfg.Connector)
	workerPool := worker.NewPool(backupQueue, processor, cfg.Worker.Concurrency)
	sched := scheduler.New(backupQueue)
	sweeper := worker.NewSweeper(pgStore, cfg.Worker.SweepInterval, cfg.Worker.StaleRunningAfter)

	// Seed the schedule check to run immediately; the scheduler re-enqueues
	// it on the hour from then on.
	if err := backupQueue.Enqueue(ctx, models.BackupJob{Type: models.JobTypeCheckSchedule}); err != nil {
		slog.Warn("enqueue schedule tick failed", "error", err)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		workerPool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	slog.Info("worker running")
	<-ctx.Done()
	slog.Info("shutdown signal received, draining executors...")
	wg.Wait()

	slog.Info("worker stopped gracefully")
	return nil
}
