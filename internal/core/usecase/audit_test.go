package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

type auditStoreFake struct {
	err    error
	saved  []domain.RetrievalEvent
	hadDDL bool
}

func (f *auditStoreFake) SaveRetrievalEvent(ctx context.Context, event domain.RetrievalEvent) error {
	_, f.hadDDL = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, event)
	return nil
}

type auditObserverFake struct {
	started  int
	finished []error
	lags     []time.Duration
}

func (f *auditObserverFake) StartEvent() { f.started++ }
func (f *auditObserverFake) FinishEvent(_ time.Duration, err error) {
	f.finished = append(f.finished, err)
}
func (f *auditObserverFake) ObserveEventLag(lag time.Duration) { f.lags = append(f.lags, lag) }

func TestRetrievalAuditSavesEventAndObservesLag(t *testing.T) {
	store := &auditStoreFake{}
	observer := &auditObserverFake{}
	uc := NewRetrievalAuditUseCase(store, observer, time.Second, nil)
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return fixed }

	err := uc.Handle(context.Background(), domain.RetrievalEvent{
		ID:         "evt-1",
		Provenance: domain.ProvenanceLegalOnly,
		CreatedAt:  fixed.Add(-3 * time.Second),
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.saved) != 1 || !store.hadDDL {
		t.Fatalf("expected one save with a deadline, got %d saves deadline=%v", len(store.saved), store.hadDDL)
	}
	if observer.started != 1 || len(observer.finished) != 1 || observer.finished[0] != nil {
		t.Fatalf("unexpected observer state: %+v", observer)
	}
	if len(observer.lags) != 1 || observer.lags[0] != 3*time.Second {
		t.Fatalf("expected 3s lag, got %v", observer.lags)
	}
}

func TestRetrievalAuditReportsStoreFailure(t *testing.T) {
	store := &auditStoreFake{err: errors.New("db down")}
	observer := &auditObserverFake{}
	uc := NewRetrievalAuditUseCase(store, observer, 0, nil)

	err := uc.Handle(context.Background(), domain.RetrievalEvent{ID: "evt-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(observer.finished) != 1 || observer.finished[0] == nil {
		t.Fatalf("expected failure to be observed")
	}
	if len(observer.lags) != 0 {
		t.Fatalf("events without timestamp must not record lag")
	}
}
