package relay

import (
	"context"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// StreamPublisher exposes a Stream through the Publisher contract. Every
// subscription is an independent collection of the stream, launched as a job
// of the publisher's scope.
type StreamPublisher[V any] struct {
	stream Stream[V]
	scope  *Scope
}

// NewStreamPublisher bridges stream into a Publisher whose work runs in scope.
// The scope is borrowed: the publisher never cancels it.
func NewStreamPublisher[V any](stream Stream[V], scope *Scope) *StreamPublisher[V] {
	return &StreamPublisher[V]{stream: stream, scope: scope}
}

// Ensure StreamPublisher implements Publisher.
var _ Publisher[struct{}] = (*StreamPublisher[struct{}])(nil)

// Executor returns the scope, which runs each submitted task as its own job.
func (p *StreamPublisher[V]) Executor() Executor {
	return p.scope
}

// Stream returns the underlying stream.
func (p *StreamPublisher[V]) Stream() Stream[V] {
	return p.stream
}

// Subscribe starts collecting the stream for s and returns immediately.
//
// Values reach s.Submit in production order. If the stream, a mapping stage or
// s.Submit itself fails, s.OnError receives the failure once and delivery
// stops. s.OnClose is then called exactly once, whether the stream completed,
// failed or was disposed. Disposing the returned handle cancels only this
// subscription; values already delivered stay delivered.
//
// If the scope is no longer active nothing is collected and s.OnClose is
// called before Subscribe returns.
func (p *StreamPublisher[V]) Subscribe(s Subscriber[V]) Disposable {
	id := uuid.NewString()
	delivered := 0

	run := p.stream.
		OnEach(func(v V) {
			s.Submit(v)
			delivered++
		}).
		Catch(func(err error) {
			capitan.Emit(p.scope.Context(), SubscriptionFailed,
				KeySubscription.Field(id),
				KeyError.Field(err.Error()),
			)
			guard(p.scope.Context(), id, func() { s.OnError(err) })
		}).
		OnCompletion(func(err error) {
			ctx := context.WithoutCancel(p.scope.Context())
			guard(ctx, id, s.OnClose)
			if err != nil {
				capitan.Emit(ctx, SubscriptionDisposed,
					KeySubscription.Field(id),
					KeyDelivered.Field(delivered),
				)
				return
			}
			capitan.Emit(ctx, SubscriptionCompleted,
				KeySubscription.Field(id),
				KeyDelivered.Field(delivered),
			)
		})

	job, ok := p.scope.launch(func(ctx context.Context) {
		capitan.Emit(ctx, SubscriptionStarted, KeySubscription.Field(id))
		_ = run.Collect(ctx, nil) //nolint:errcheck // reported through OnCompletion
	})
	if !ok {
		guard(context.WithoutCancel(p.scope.Context()), id, s.OnClose)
	}
	return job
}

// HasSubscribers reports whether the scope is still active. It is a liveness
// check on the owning scope, not a count of attached subscribers.
func (p *StreamPublisher[V]) HasSubscribers() bool {
	return p.scope.Active()
}

// Map returns a publisher over the values of p passed through fn, in the same
// scope. A failing fn is delivered to subscribers as a TransactionError.
func (p *StreamPublisher[V]) Map(fn Mapper[V, V]) *StreamPublisher[V] {
	return Transform(p, fn)
}

// Transform is Map for a mapper that changes the value type.
func Transform[V, R any](p *StreamPublisher[V], fn Mapper[V, R]) *StreamPublisher[R] {
	return NewStreamPublisher(Map(p.stream, fn), p.scope)
}

// guard runs a terminal subscriber callback, reporting a panic instead of
// letting it take down the scope's goroutine.
func guard(ctx context.Context, id string, fn func()) {
	defer func() {
		if err := recovered(recover()); err != nil {
			capitan.Emit(ctx, SubscriberPanicked,
				KeySubscription.Field(id),
				KeyError.Field(err.Error()),
			)
		}
	}()
	fn()
}
