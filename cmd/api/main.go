package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doc-approval-engine/internal/api"
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
	logger := logging.Setup(cfg.LogLevel).With("module", "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logger, "approval-api")
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	// With the in-process bus the API is the only place transitions are seen.
	if cfg.EventBus == "gochannel" {
		if err := rt.Bus.SubscribeTransitions(ctx, events.AuditTransitions(rt.Store)); err != nil {
			logger.Error("subscribe audit", "error", err)
			os.Exit(1)
		}
		if err := rt.Bus.SubscribeEscalations(ctx, events.AuditEscalations(rt.Store)); err != nil {
			logger.Error("subscribe audit", "error", err)
			os.Exit(1)
		}
	}

	var manifests api.ManifestWriter
	if cfg.MinioAccessKey != "" {
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
		manifests = blob
	}

	h := api.NewHandler(api.Dependencies{
		Engine:          rt.Engine,
		Templates:       rt.Templates,
		Synthesizer:     synthesis.NewSynthesizer(logger.With("module", "synthesis"), nil),
		Plans:           rt.Store,
		Audit:           rt.Store,
		Manifests:       manifests,
		ManifestSuffix:  cfg.ManifestSuffix,
		Ready:           rt.Store.Ping,
		MaxRequestBytes: cfg.MaxRequestBytes,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("api stopped")
}
