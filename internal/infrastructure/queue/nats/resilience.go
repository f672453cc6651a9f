package nats

import (
	"errors"
	"net/http"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/resilience"
)

// brokerStatus maps NATS client errors onto the HTTP codes the shared
// transport classifier understands. Lost or missing connections are 503,
// an oversized event is 413.
func brokerStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, nats.ErrMaxPayload):
		return http.StatusRequestEntityTooLarge, true
	}
	return 0, false
}

func classifyNATSError(err error) resilience.ErrorClassification {
	return resilience.ClassifyTransport(err, brokerStatus)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
