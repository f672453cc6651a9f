package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/resilience"
)

const (
	DefaultSubject    = "legal.retrieval.events"
	DefaultQueueGroup = "retrieval-audit"
)

type msgPublisher interface {
	Publish(subject string, data []byte) error
}

// EventBus carries retrieval events between the api and the audit worker.
type EventBus struct {
	conn     *nats.Conn
	pub      msgPublisher
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*EventBus, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*EventBus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	if subject == "" {
		subject = DefaultSubject
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("jeonse-legal-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &EventBus{
		conn:     conn,
		pub:      conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (b *EventBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *EventBus) PublishRetrieval(ctx context.Context, event domain.RetrievalEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode retrieval event: %w", err)
	}
	call := func(_ context.Context) error {
		if err := b.pub.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if err := b.executor.Execute(ctx, "nats.publish", call, classifyNATSError); err != nil {
		return wrapTemporaryIfNeeded("publish retrieval event", err)
	}
	return nil
}

// SubscribeRetrievalEvents blocks until ctx is done, then drains the
// subscription. Handler errors are logged; the event is not redelivered.
func (b *EventBus) SubscribeRetrievalEvents(
	ctx context.Context,
	queueGroup string,
	handler func(context.Context, domain.RetrievalEvent) error,
) error {
	if queueGroup == "" {
		queueGroup = DefaultQueueGroup
	}
	sub, err := b.conn.QueueSubscribe(b.subject, queueGroup, func(msg *nats.Msg) {
		b.dispatch(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (b *EventBus) dispatch(ctx context.Context, data []byte, handler func(context.Context, domain.RetrievalEvent) error) {
	if ctx.Err() != nil {
		return
	}
	var event domain.RetrievalEvent
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Error("retrieval_event_decode_failed", "error", err, "bytes", len(data))
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, event); err != nil {
		b.logger.Error("retrieval_event_handler_failed", "event_id", event.ID, "error", err)
	}
}
