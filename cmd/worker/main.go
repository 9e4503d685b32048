package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"doc-approval-engine/internal/app"
	"doc-approval-engine/internal/config"
	"doc-approval-engine/internal/escalation"
	"doc-approval-engine/internal/logging"
	appTemporal "doc-approval-engine/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel).With("module", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logger, "approval-worker")
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	activities := &appTemporal.Activities{
		Engine: rt.Engine,
		Logger: logger.With("module", "escalation_activity"),
	}

	w := worker.New(rt.Temporal, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.StageEscalationWorkflow, workflow.RegisterOptions{Name: appTemporal.StageEscalationWorkflowName})
	w.RegisterActivity(activities.EscalateStageActivity)

	sweeper, err := escalation.NewSweeper(rt.Engine, cfg.EscalationSweepCron, logger)
	if err != nil {
		logger.Error("configure sweeper", "error", err)
		os.Exit(1)
	}
	if err := sweeper.Start(); err != nil {
		logger.Error("start sweeper", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sweeper.Stop(stopCtx)
	}()

	logger.Info("worker running", "task_queue", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
}
