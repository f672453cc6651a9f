package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/ports"
)

type auditObserver interface {
	StartEvent()
	FinishEvent(duration time.Duration, err error)
	ObserveEventLag(lag time.Duration)
}

// RetrievalAuditUseCase persists retrieval events received from the bus.
type RetrievalAuditUseCase struct {
	store    ports.RetrievalAuditStore
	observer auditObserver
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewRetrievalAuditUseCase(
	store ports.RetrievalAuditStore,
	observer auditObserver,
	timeout time.Duration,
	logger *slog.Logger,
) *RetrievalAuditUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RetrievalAuditUseCase{
		store:    store,
		observer: observer,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

func (uc *RetrievalAuditUseCase) Handle(ctx context.Context, event domain.RetrievalEvent) error {
	start := uc.now()
	if uc.observer != nil {
		uc.observer.StartEvent()
		if !event.CreatedAt.IsZero() {
			uc.observer.ObserveEventLag(start.Sub(event.CreatedAt))
		}
	}

	saveCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	err := uc.store.SaveRetrievalEvent(saveCtx, event)

	if uc.observer != nil {
		uc.observer.FinishEvent(uc.now().Sub(start), err)
	}
	if err != nil {
		return err
	}
	uc.logger.Debug("retrieval_event_saved", "event_id", event.ID, "provenance", event.Provenance)
	return nil
}
