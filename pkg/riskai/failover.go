package riskai

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// Provider is a named risk scorer. Name is used for logging and metrics.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, summary ChangeSummary) (RiskResult, error)
}

type guardedProvider struct {
	provider Provider
	breaker  *circuitBreaker
}

// FailoverAnalyzer tries providers in order, wrapping each in its own
// circuit breaker. A provider with an open circuit is skipped without a
// network round trip.
type FailoverAnalyzer struct {
	providers []guardedProvider
	log       *logrus.Entry
}

func NewFailoverAnalyzer(log *logrus.Entry, cfg CircuitBreakerConfig, providers ...Provider) *FailoverAnalyzer {
	guarded := make([]guardedProvider, 0, len(providers))
	for _, p := range providers {
		guarded = append(guarded, guardedProvider{provider: p, breaker: newCircuitBreaker(cfg)})
	}
	return &FailoverAnalyzer{providers: guarded, log: log}
}

func (a *FailoverAnalyzer) Analyze(ctx context.Context, summary ChangeSummary) (RiskResult, error) {
	if len(a.providers) == 0 {
		return RiskResult{}, ErrAllProvidersUnavailable
	}

	var lastErr error
	for _, gp := range a.providers {
		if !gp.breaker.Allow() {
			a.log.WithField("provider", gp.provider.Name()).Debug("risk provider circuit open, skipping")
			continue
		}
		result, err := gp.provider.Analyze(ctx, summary)
		if err == nil {
			gp.breaker.RecordSuccess()
			return result, nil
		}
		gp.breaker.RecordFailure()
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		a.log.WithError(err).WithField("provider", gp.provider.Name()).Warn("risk provider failed, trying next")
	}
	if lastErr != nil {
		return RiskResult{}, errors.Wrapf(ErrAllProvidersUnavailable, "%v", lastErr)
	}
	return RiskResult{}, ErrAllProvidersUnavailable
}

var _ Analyzer = (*FailoverAnalyzer)(nil)
