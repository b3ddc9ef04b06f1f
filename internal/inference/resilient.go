package inference

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/brain-mri-analysis-server/internal/domain"
)

// ResilientExplainer shields the orchestrator from a flapping explainability
// backend. Once the breaker opens, calls fail fast instead of waiting on a
// dead collaborator; the orchestrator already degrades explanation failures
// to an absent explanation, so an open breaker never blocks inference.
type ResilientExplainer struct {
	logger  *logrus.Logger
	inner   domain.Explainer
	breaker *gobreaker.CircuitBreaker
}

// NewResilientExplainer wraps an explainer with a circuit breaker.
func NewResilientExplainer(inner domain.Explainer, logger *logrus.Logger) *ResilientExplainer {
	settings := gobreaker.Settings{
		Name:        "explainability",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &ResilientExplainer{
		logger:  logger,
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Explain delegates through the breaker.
func (r *ResilientExplainer) Explain(ctx context.Context, study *domain.Study, seg *domain.SegmentationSummary, gen *domain.GenotypeSummary) (*domain.ExplainabilitySummary, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Explain(ctx, study, seg, gen)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.ExplainabilitySummary), nil
}
