package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/resilience"
)

type publisherFake struct {
	errs     []error
	calls    int
	subjects []string
	payloads [][]byte
}

func (p *publisherFake) Publish(subject string, data []byte) error {
	p.calls++
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	if len(p.errs) >= p.calls {
		return p.errs[p.calls-1]
	}
	return nil
}

func newTestBus(pub msgPublisher, executor *resilience.Executor) *EventBus {
	return &EventBus{
		pub:      pub,
		subject:  DefaultSubject,
		executor: executor,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func fastPolicy() resilience.Policy {
	return resilience.Policy{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
	}
}

func TestPublishRetrievalEncodesEvent(t *testing.T) {
	pub := &publisherFake{}
	bus := newTestBus(pub, nil)

	err := bus.PublishRetrieval(context.Background(), domain.RetrievalEvent{
		ID:         "evt-1",
		Provenance: domain.ProvenanceLegalOnly,
		LegalCount: 4,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.calls != 1 || pub.subjects[0] != DefaultSubject {
		t.Fatalf("unexpected publish calls=%d subjects=%v", pub.calls, pub.subjects)
	}
	var got domain.RetrievalEvent
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.ID != "evt-1" || got.LegalCount != 4 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestPublishRetrievalRetriesTransientErrors(t *testing.T) {
	pub := &publisherFake{errs: []error{nats.ErrTimeout}}
	bus := newTestBus(pub, resilience.NewExecutor(fastPolicy()))

	if err := bus.PublishRetrieval(context.Background(), domain.RetrievalEvent{ID: "evt"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if pub.calls != 2 {
		t.Fatalf("expected 2 publish attempts, got %d", pub.calls)
	}
}

func TestPublishRetrievalWrapsTemporary(t *testing.T) {
	pub := &publisherFake{errs: []error{nats.ErrConnectionClosed, nats.ErrConnectionClosed, nats.ErrConnectionClosed}}
	bus := newTestBus(pub, resilience.NewExecutor(fastPolicy()))

	err := bus.PublishRetrieval(context.Background(), domain.RetrievalEvent{ID: "evt"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestPublishRetrievalPermanentErrorNotTemporary(t *testing.T) {
	pub := &publisherFake{errs: []error{nats.ErrBadSubject}}
	bus := newTestBus(pub, resilience.NewExecutor(fastPolicy()))

	err := bus.PublishRetrieval(context.Background(), domain.RetrievalEvent{ID: "evt"})
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("expected no retry, got %d calls", pub.calls)
	}
}

func TestDispatchDecodesAndSkipsMalformed(t *testing.T) {
	bus := newTestBus(&publisherFake{}, nil)
	var got []domain.RetrievalEvent
	handler := func(_ context.Context, e domain.RetrievalEvent) error {
		got = append(got, e)
		return errors.New("handler failure is logged only")
	}

	bus.dispatch(context.Background(), []byte("{not json"), handler)
	bus.dispatch(context.Background(), []byte(`{"id":"evt-2","provenance":"no_results"}`), handler)

	if len(got) != 1 || got[0].ID != "evt-2" || got[0].Provenance != domain.ProvenanceNoResults {
		t.Fatalf("unexpected dispatched events: %+v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.dispatch(ctx, []byte(`{"id":"evt-3"}`), handler)
	if len(got) != 1 {
		t.Fatalf("expected no dispatch after cancellation")
	}
}

func TestClassifyNATSError(t *testing.T) {
	if c := classifyNATSError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("cancellation must not be retried or recorded: %+v", c)
	}
	if c := classifyNATSError(fmt.Errorf("wrap: %w", nats.ErrNoServers)); !c.Retryable || !c.RecordFailure {
		t.Fatalf("no servers must be retryable: %+v", c)
	}
	if c := classifyNATSError(nats.ErrConnectionReconnecting); !c.Retryable {
		t.Fatalf("reconnecting must be retryable: %+v", c)
	}
	if c := classifyNATSError(nats.ErrMaxPayload); c.Retryable || c.RecordFailure {
		t.Fatalf("oversized event is not a broker fault: %+v", c)
	}
	if c := classifyNATSError(errors.New("boom")); c.Retryable || !c.RecordFailure {
		t.Fatalf("unknown errors are permanent but recorded: %+v", c)
	}
}

func TestPublishRetrievalOversizedEventNotRetried(t *testing.T) {
	pub := &publisherFake{errs: []error{nats.ErrMaxPayload}}
	bus := newTestBus(pub, resilience.NewExecutor(fastPolicy()))

	err := bus.PublishRetrieval(context.Background(), domain.RetrievalEvent{ID: "evt"})
	if !errors.Is(err, nats.ErrMaxPayload) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent max payload error, got %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("expected no retry, got %d calls", pub.calls)
	}
}

func TestWrapTemporaryIfNeededLabelsOperation(t *testing.T) {
	err := wrapTemporaryIfNeeded("publish retrieval event", nats.ErrDisconnected)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "publish retrieval event: ") {
		t.Fatalf("expected operation label, got %q", err.Error())
	}
	if wrapTemporaryIfNeeded("x", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
