package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"doc-approval-engine/internal/app"
	"doc-approval-engine/internal/config"
	"doc-approval-engine/internal/events"
	"doc-approval-engine/internal/logging"
	"doc-approval-engine/internal/storage"
	"doc-approval-engine/internal/synthesis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel).With("module", "event-handler")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logger, "approval-audit")
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	if cfg.EventBus == "kafka" {
		if err := rt.Bus.SubscribeTransitions(ctx, events.AuditTransitions(rt.Store)); err != nil {
			logger.Error("subscribe transitions", "error", err)
			os.Exit(1)
		}
		if err := rt.Bus.SubscribeEscalations(ctx, events.AuditEscalations(rt.Store)); err != nil {
			logger.Error("subscribe escalations", "error", err)
			os.Exit(1)
		}
	}

	client, err := storage.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		logger.Error("connect minio", "error", err)
		os.Exit(1)
	}
	blob, err := storage.NewMinioStore(ctx, client, cfg.MinioBucket)
	if err != nil {
		logger.Error("prepare minio bucket", "error", err)
		os.Exit(1)
	}

	intake := &events.Intake{
		Manifests: blob,
		Synth:     synthesis.NewSynthesizer(logger.With("module", "synthesis"), nil),
		Plans:     rt.Store,
		Templates: rt.Templates,
		Engine:    rt.Engine,
		Audit:     rt.Store,
		Logger:    logger,
	}

	source := events.NewMinioManifestSource(client, cfg.MinioBucket, "", cfg.ManifestSuffix)
	logger.Info("listening for section manifests", "bucket", cfg.MinioBucket, "suffix", cfg.ManifestSuffix)
	if err := source.Run(ctx, intake.Handle); err != nil {
		logger.Error("event-handler stopped with error", "error", err)
		os.Exit(1)
	}
}
