package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/pii-redactor/internal/bootstrap"
	"github.com/kirillkom/pii-redactor/internal/config"
	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/observability/logging"
)

const service = "worker"

func main() {
	logger := logging.NewJSONLogger("pii-worker", os.Getenv("LOG_LEVEL"))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}
	logger = logging.NewJSONLogger("pii-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", worker.Metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("worker metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("worker subscribed", "subject", cfg.NATSSubject, "queue_group", cfg.NATSQueueGroup)
		return worker.Events.SubscribeDocumentEvents(gctx, func(handlerCtx context.Context, event domain.DocumentEvent) error {
			start := time.Now()
			worker.Metrics.StartEvent()
			worker.Metrics.ObserveEventLag(service, start.Sub(event.OccurredAt))

			recordCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
			defer cancel()
			err := worker.Audit.Record(recordCtx, event)
			worker.Metrics.FinishEvent(service, event, time.Since(start), err)
			return err
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
