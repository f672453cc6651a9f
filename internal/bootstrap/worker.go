package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/jeonse-legal-assistant/internal/config"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/usecase"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/jeonse-legal-assistant/internal/observability/metrics"
)

// Worker consumes retrieval events and stores them in the audit table.
type Worker struct {
	Config  config.Config
	Bus     *nats.EventBus
	Audit   *usecase.RetrievalAuditUseCase
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.NATSURL) == "" {
		return nil, fmt.Errorf("worker requires NATS_URL")
	}
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, fmt.Errorf("worker requires POSTGRES_DSN")
	}

	db, err := openPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(cfg.Resilience, resilience.WithLogger(logger)),
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	m := metrics.NewWorkerMetrics("worker")
	audit := usecase.NewRetrievalAuditUseCase(postgres.NewRetrievalAuditRepository(db), m, cfg.WorkerAuditTimeout, logger)

	return &Worker{
		Config:  cfg,
		Bus:     bus,
		Audit:   audit,
		Metrics: m,
		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
