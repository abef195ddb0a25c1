package external

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/variantdb-pipeline/internal/domain"
)

// ResilientAPI wraps a resolution API with a circuit breaker so a flapping
// upstream stops consuming the retry and pacing budget of every variant in a
// batch. An open breaker surfaces as ServiceUnavailable, which the
// orchestrator already treats as a per-variant, recoverable failure.
type ResilientAPI struct {
	api     API
	breaker *gobreaker.CircuitBreaker
}

// NewResilientAPI wraps api with a breaker that trips after repeated
// transport or service failures.
func NewResilientAPI(api API, log *logrus.Logger) *ResilientAPI {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "VariantValidator",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Resolver circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Only infrastructure failures should trip the breaker; a
			// variant the service rejects or cannot recognize says nothing
			// about upstream health.
			switch domain.FailureKindOf(err) {
			case domain.FailureConnectionProblem, domain.FailureServiceError, domain.FailureServiceUnavailable:
				return false
			}
			return true
		},
	})

	return &ResilientAPI{api: api, breaker: breaker}
}

// Fetch delegates to the wrapped API under the breaker.
func (r *ResilientAPI) Fetch(ctx context.Context, variant, path string) (Document, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		return r.api.Fetch(ctx, variant, path)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.WrapResolverError(domain.FailureServiceUnavailable, variant,
				"resolver calls are paused after repeated failures; try again later", err)
		}
		return nil, err
	}
	return result.(Document), nil
}
