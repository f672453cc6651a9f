package metrics

import (
	"context"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

// PublishRetrieval records a retrieval event. It lets the metrics sink sit in
// the same publisher chain as the event bus.
func (m *HTTPServerMetrics) PublishRetrieval(_ context.Context, event domain.RetrievalEvent) error {
	provenance := string(event.Provenance)
	if provenance == "" {
		provenance = "unknown"
	}
	method := string(event.ConversionMethod)
	if method == "" {
		method = "unknown"
	}

	m.retrievalTotal.WithLabelValues(provenance).Inc()
	m.conversionTotal.WithLabelValues(method).Inc()
	m.retrievalDuration.Observe((time.Duration(event.DurationMS * float64(time.Millisecond))).Seconds())

	if event.Provenance == domain.ProvenanceError {
		return nil
	}
	m.retrievedDocuments.WithLabelValues("legal").Observe(float64(event.LegalCount))
	m.similarityScore.WithLabelValues("legal").Observe(event.LegalScore)
	if event.HybridUsed {
		m.hybridTotal.Inc()
	}
	if event.NewsSearched {
		m.newsSearchTotal.Inc()
		m.retrievedDocuments.WithLabelValues("news").Observe(float64(event.NewsCount))
		m.similarityScore.WithLabelValues("news").Observe(event.NewsScore)
	}
	return nil
}
