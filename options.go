package relay

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// Pipeline identities.
var (
	passthroughID    = pipz.NewIdentity("relay:passthrough", "Stores the decoded value unchanged")
	retryID          = pipz.NewIdentity("relay:retry", "Retries the apply pipeline")
	backoffID        = pipz.NewIdentity("relay:backoff", "Retries the apply pipeline with exponential backoff")
	timeoutID        = pipz.NewIdentity("relay:timeout", "Bounds the apply pipeline")
	fallbackID       = pipz.NewIdentity("relay:fallback", "Falls back to alternative processors")
	circuitBreakerID = pipz.NewIdentity("relay:circuit-breaker", "Rejects values after repeated failures")
	errorHandlerID   = pipz.NewIdentity("relay:error-handler", "Observes apply failures")
	middlewareID     = pipz.NewIdentity("relay:middleware", "Runs middleware before storing")
	rateLimiterID    = pipz.NewIdentity("relay:rate-limiter", "Limits how often values are applied")
)

// Option configures the apply pipeline of a Reference. Each value that
// decodes and validates runs through the pipeline before it is stored and
// published.
//
// Instance configuration (debounce, sync mode, codec, etc.) is handled via
// chainable methods on the Reference before calling Start.
type Option[T Validator] func(pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]]

func buildPipeline[T Validator](terminal pipz.Chainable[*Request[T]], opts []Option[T]) pipz.Chainable[*Request[T]] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// WithRetry retries a failed pipeline immediately, up to maxAttempts times.
func WithRetry[T Validator](maxAttempts int) Option[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewRetry(retryID, p, maxAttempts)
	}
}

// WithBackoff retries a failed pipeline with delays of baseDelay,
// 2*baseDelay, 4*baseDelay and so on.
func WithBackoff[T Validator](maxAttempts int, baseDelay time.Duration) Option[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewBackoff(backoffID, p, maxAttempts, baseDelay)
	}
}

// WithTimeout fails the pipeline if it runs longer than d.
func WithTimeout[T Validator](d time.Duration) Option[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewTimeout(timeoutID, p, d)
	}
}

// WithFallback tries each fallback in order when the pipeline fails.
func WithFallback[T Validator](fallbacks ...pipz.Chainable[*Request[T]]) Option[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		all := append([]pipz.Chainable[*Request[T]]{p}, fallbacks...)
		return pipz.NewFallback(fallbackID, all...)
	}
}

// WithCircuitBreaker opens after failures consecutive failures and rejects
// values until recovery has passed. A half-open circuit lets one value through
// to test recovery.
func WithCircuitBreaker[T Validator](failures int, recovery time.Duration) Option[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewCircuitBreaker(circuitBreakerID, p, failures, recovery)
	}
}

// WithRateLimit limits how often the pipeline runs to rate per second with
// the given burst. Values wait for a token.
func WithRateLimit[T Validator](rate float64, burst int) Option[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewRateLimiter(rateLimiterID, rate, burst, p)
	}
}

// WithErrorHandler passes pipeline failures to handler. The failure still
// rejects the value.
func WithErrorHandler[T Validator](handler pipz.Chainable[*pipz.Error[*Request[T]]]) Option[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewHandle(errorHandlerID, p, handler)
	}
}

// WithMiddleware runs processors in order before the rest of the pipeline.
//
// Example:
//
//	relay.NewReference[Config](
//	    source,
//	    scope,
//	    relay.WithMiddleware(
//	        relay.UseEffect[Config](auditID, audit),
//	        relay.UseRateLimit[Config](10, 5, notify),
//	    ),
//	    relay.WithCircuitBreaker[Config](5, 30*time.Second),
//	)
func WithMiddleware[T Validator](processors ...pipz.Chainable[*Request[T]]) Option[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		all := make([]pipz.Chainable[*Request[T]], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence(middlewareID, all...)
	}
}

// UseTransform creates a middleware processor that rewrites the request and
// cannot fail.
func UseTransform[T Validator](id pipz.Identity, fn func(context.Context, *Request[T]) *Request[T]) pipz.Chainable[*Request[T]] {
	return pipz.Transform(id, fn)
}

// UseApply creates a middleware processor that rewrites the request and may
// reject it.
func UseApply[T Validator](id pipz.Identity, fn func(context.Context, *Request[T]) (*Request[T], error)) pipz.Chainable[*Request[T]] {
	return pipz.Apply(id, fn)
}

// UseEffect creates a middleware processor for side effects. The request
// passes through unchanged unless fn fails.
func UseEffect[T Validator](id pipz.Identity, fn func(context.Context, *Request[T]) error) pipz.Chainable[*Request[T]] {
	return pipz.Effect(id, fn)
}

// UseMutate applies transformer only when condition holds.
func UseMutate[T Validator](id pipz.Identity, transformer func(context.Context, *Request[T]) *Request[T], condition func(context.Context, *Request[T]) bool) pipz.Chainable[*Request[T]] {
	return pipz.Mutate(id, transformer, condition)
}

// UseEnrich attempts an optional enhancement. A failing fn leaves the request
// as it was.
func UseEnrich[T Validator](id pipz.Identity, fn func(context.Context, *Request[T]) (*Request[T], error)) pipz.Chainable[*Request[T]] {
	return pipz.Enrich(id, fn)
}

// UseRetry retries processor immediately, up to maxAttempts times.
func UseRetry[T Validator](maxAttempts int, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewRetry(retryID, processor, maxAttempts)
}

// UseBackoff retries processor with exponential backoff.
func UseBackoff[T Validator](maxAttempts int, baseDelay time.Duration, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewBackoff(backoffID, processor, maxAttempts, baseDelay)
}

// UseTimeout fails processor if it runs longer than d.
func UseTimeout[T Validator](d time.Duration, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewTimeout(timeoutID, processor, d)
}

// UseFallback tries each fallback in order when primary fails.
func UseFallback[T Validator](primary pipz.Chainable[*Request[T]], fallbacks ...pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	all := append([]pipz.Chainable[*Request[T]]{primary}, fallbacks...)
	return pipz.NewFallback(fallbackID, all...)
}

// UseFilter runs processor only when condition holds. Otherwise the request
// passes through unchanged.
func UseFilter[T Validator](id pipz.Identity, condition func(context.Context, *Request[T]) bool, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewFilter(id, condition, processor)
}

// UseRateLimit runs processor at most rate times per second with the given
// burst. Requests wait for a token.
func UseRateLimit[T Validator](rate float64, burst int, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewRateLimiter(rateLimiterID, rate, burst, processor)
}
