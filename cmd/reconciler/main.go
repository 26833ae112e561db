package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/pinmap/internal/adapters/nats"
	"github.com/samirrijal/pinmap/internal/adapters/postgres"
	"github.com/samirrijal/pinmap/internal/adapters/valkey"
	"github.com/samirrijal/pinmap/internal/core/usecases"
	"github.com/samirrijal/pinmap/internal/pkg/config"
	"github.com/samirrijal/pinmap/internal/pkg/logging"
	"github.com/samirrijal/pinmap/internal/workflows"
)

const cronWorkflowID = "pinmap-reconcile-cron"

func main() {
	cfg, err := config.Load("pinmap-reconciler")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 10)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	reconciler := usecases.NewReconcileService(postgres.NewCounterMaintainer(db), cfg.Reconcile.BatchSize, slog.Default())

	activities := &workflows.ReconcileActivities{Reconciler: reconciler}
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, cached listings will expire on their own", "error", err)
	} else {
		defer cache.Close()
		activities.Cache = cache
	}

	// Targeted recounts driven by ledger events
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, relying on scheduled reconciliation only", "error", err)
	} else {
		defer sub.Close()
		if err := reconciler.Follow(ctx, sub); err != nil {
			log.Fatalf("subscribe: %v", err)
		}
		slog.Info("listening for confirmation events", "subjects", natsadapter.ConfirmationSubjects)
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ReconcileCountsWorkflow)
	w.RegisterActivity(activities)

	if err := startCron(ctx, c, cfg); err != nil {
		log.Fatalf("schedule reconcile: %v", err)
	}

	slog.Info("reconciler worker started", "task_queue", cfg.Temporal.TaskQueue, "cron", cfg.Reconcile.Cron)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// startCron starts the periodic full recount. A schedule left running by a
// previous process is kept as is.
func startCron(ctx context.Context, c client.Client, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           cronWorkflowID,
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: cfg.Reconcile.Cron,
	}, workflows.ReconcileCountsWorkflow, workflows.ReconcileInput{})

	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		slog.Info("reconcile schedule already running", "workflow_id", cronWorkflowID)
		return nil
	}
	return err
}
