package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"potrosnja/internal/cli"
	apphttp "potrosnja/internal/http"
	applog "potrosnja/internal/log"
	"potrosnja/internal/metrics"
	"potrosnja/internal/publisher"
	"potrosnja/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendRes, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := backendRes.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	m := metrics.New()
	opts := services.Options{
		Primary: backendRes.Primary,
		Cache:   backendRes.Cache,
		Years:   cfg.Years(),
		Metrics: m,
		Logger:  logger.WithComponent(applog.ComponentRecords),
	}

	if cfg.MQTTEnabled {
		pub, err := publisher.New(publisher.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    "potrosnja",
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
		})
		if err != nil {
			// readings still work without the broker
			logger.Warn("MQTT publisher disabled", "error", err, "broker", cfg.MQTTBroker)
		} else {
			defer pub.Close()
			opts.Notifier = pub
			logger.Info("MQTT publisher connected", "broker", cfg.MQTTBroker, "prefix", cfg.MQTTTopicPrefix)
		}
	}

	svc := services.NewRecordService(opts)
	status := svc.Load(ctx)
	logger.Info("Initial load finished", "state", status.State, "source", status.Source, "records", len(svc.Records()))

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     m,
		Logger:      logger.WithComponent(applog.ComponentHTTP),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 35 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting potrosnja server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
