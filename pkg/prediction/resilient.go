package prediction

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/oncodiag-server/internal/domain"
)

// ResilientBackend wraps a Backend with per-endpoint circuit breakers. An open
// breaker short-circuits the call without touching the network; the failure
// surfaces as an Unreachable prediction error so the orchestration layer's
// fallback ladder treats it the same as a transport failure.
type ResilientBackend struct {
	inner  Backend
	logger *logrus.Logger

	primaryBreaker   *gobreaker.CircuitBreaker
	secondaryBreaker *gobreaker.CircuitBreaker
	legacyBreaker    *gobreaker.CircuitBreaker
}

// NewResilientBackend wraps the given backend with circuit breakers.
func NewResilientBackend(inner Backend, logger *logrus.Logger) *ResilientBackend {
	return &ResilientBackend{
		inner:            inner,
		logger:           logger,
		primaryBreaker:   newBreaker("softmax", logger),
		secondaryBreaker: newBreaker("mlp", logger),
		legacyBreaker:    newBreaker("legacy", logger),
	}
}

func newBreaker(name string, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// Predict routes the call through the breaker for the model kind.
func (r *ResilientBackend) Predict(ctx context.Context, kind domain.ModelKind, text string) (*Response, error) {
	breaker := r.primaryBreaker
	if kind == domain.ModelMLP {
		breaker = r.secondaryBreaker
	}

	result, err := breaker.Execute(func() (any, error) {
		return r.inner.Predict(ctx, kind, text)
	})
	if err != nil {
		return nil, mapBreakerError(string(kind), err)
	}
	return result.(*Response), nil
}

// SaveReport routes the legacy save step through the legacy breaker.
func (r *ResilientBackend) SaveReport(ctx context.Context, text string) error {
	_, err := r.legacyBreaker.Execute(func() (any, error) {
		return nil, r.inner.SaveReport(ctx, text)
	})
	if err != nil {
		return mapBreakerError("legacy", err)
	}
	return nil
}

// PredictFeatures routes the legacy scoring step through the legacy breaker.
func (r *ResilientBackend) PredictFeatures(ctx context.Context, features map[string]float64) (*LegacyPrediction, error) {
	result, err := r.legacyBreaker.Execute(func() (any, error) {
		return r.inner.PredictFeatures(ctx, features)
	})
	if err != nil {
		return nil, mapBreakerError("legacy", err)
	}
	return result.(*LegacyPrediction), nil
}

// mapBreakerError converts breaker rejections into Unreachable prediction
// errors and passes prediction errors through unchanged.
func mapBreakerError(endpoint string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewPredictionError(domain.ErrKindUnreachable, endpoint,
			"circuit breaker open", err)
	}
	return err
}
