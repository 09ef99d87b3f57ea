package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/logging"
)

// Fallback is invoked when a policy's retries are exhausted or its breaker
// is open. It may return a degraded result instead of propagating the error.
type Fallback func(ctx context.Context, cause error) (any, error)

// Policy bundles one dependency's circuit breaker, retry tuning, and
// optional fallback, named the way spec.md §4.4 names its dependencies
// ("openai.chat", "search.query", ...).
type Policy struct {
	Name     string
	Breaker  *CircuitBreaker
	Retry    RetryConfig
	Fallback Fallback
}

// Registry holds every named Policy a process wires at startup.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*Policy
	logger   *logrus.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{policies: make(map[string]*Policy), logger: logger}
}

// Register adds or replaces a named policy.
func (r *Registry) Register(p *Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Name] = p
}

// Get returns the named policy, or nil if it was never registered.
func (r *Registry) Get(name string) *Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policies[name]
}

// NewCorrelationID mints a fresh correlation id (spec.md §9: generated at
// orchestrator entry, threaded via context, never stored as a back-pointer).
func NewCorrelationID() string {
	return uuid.NewString()
}

// Execute runs op under the named policy: it checks the breaker, retries
// transient failures with backoff, records the outcome, and falls back when
// configured and all else fails. If no policy is registered under name, op
// runs unprotected.
func (r *Registry) Execute(ctx context.Context, policyName string, op func(ctx context.Context) (any, error)) (any, error) {
	p := r.Get(policyName)
	if p == nil {
		return op(ctx)
	}

	entry := logging.Entry(ctx, r.logger, "resilience").WithField("policy", policyName)

	if p.Breaker != nil && !p.Breaker.Allow() {
		entry.Warn("circuit open, short-circuiting call")
		openErr := apperrors.New(apperrors.KindCircuitOpen, "circuit open for "+policyName).WithCorrelation(logging.CorrelationID(ctx))
		if p.Fallback != nil {
			return p.Fallback(ctx, openErr)
		}
		return nil, openErr
	}

	maxRetries := p.Retry.MaxRetries
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Retry.backoff(attempt)
			if appErr := asAppError(lastErr); appErr != nil && appErr.RetryAfter > 0 {
				delay = time.Duration(appErr.RetryAfter) * time.Second
			}
			entry.WithField("attempt", attempt).WithField("delay", delay).Debug("retrying")
			if err := sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		result, err := op(ctx)
		if err == nil {
			if p.Breaker != nil {
				p.Breaker.RecordSuccess()
			}
			return result, nil
		}

		lastErr = err
		if !apperrors.IsRetryable(err) {
			if p.Breaker != nil {
				p.Breaker.RecordFailure()
			}
			break
		}
		if attempt == maxRetries {
			if p.Breaker != nil {
				p.Breaker.RecordFailure()
			}
		}
	}

	entry.WithError(lastErr).Warn("policy exhausted retries")
	if p.Fallback != nil {
		return p.Fallback(ctx, lastErr)
	}
	return nil, lastErr
}

func asAppError(err error) *apperrors.Error {
	var e *apperrors.Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
