package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// DefaultDebounce is the default debounce duration for change processing.
const DefaultDebounce = 100 * time.Millisecond

// Reference is a live view of one configuration value.
//
// It collects a source stream of raw documents, decodes and validates each
// one, runs it through a processing pipeline and, on success, stores it and
// publishes it to subscribers. Subscribers receive the current value when they
// attach, then every later applied value. A document that fails any stage is
// dropped: the previous value stays current and the Reference reports a
// degraded state.
type Reference[T Validator] struct {
	source         Stream[[]byte]
	scope          *Scope
	pipeline       pipz.Chainable[*Request[T]]
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	tags           bool
	clock          clockz.Clock
	codec          Codec
	metrics        MetricsProvider
	onStop         func(State)

	state        atomic.Int32
	current      atomic.Pointer[T]
	lastError    atomic.Pointer[error]
	errorHistory *errorRing
	values       *Processor[T]

	mu      sync.Mutex
	started bool

	// sync mode
	changes <-chan []byte
	result  <-chan error
}

// NewReference creates a Reference over source whose background work runs in
// scope. Options configure the processing pipeline; instance configuration
// uses chainable methods before calling Start.
//
// Example:
//
//	ref := relay.NewReference[Config](
//	    file.New("/etc/app/config.json").Stream(),
//	    scope,
//	    relay.WithTimeout[Config](time.Second),
//	).Debounce(200 * time.Millisecond)
func NewReference[T Validator](source Stream[[]byte], scope *Scope, opts ...Option[T]) *Reference[T] {
	terminal := pipz.Transform(passthroughID, func(_ context.Context, req *Request[T]) *Request[T] {
		return req
	})

	values := NewProcessor[T](scope)
	values.cache = true

	r := &Reference[T]{
		source:       source,
		scope:        scope,
		pipeline:     buildPipeline(terminal, opts),
		debounce:     DefaultDebounce,
		clock:        clockz.RealClock,
		codec:        JSONCodec{},
		errorHistory: newErrorRing(0),
		values:       values,
	}
	r.state.Store(int32(StateLoading))
	return r
}

// Ensure Reference implements Publisher.
var _ Publisher[noopConfig] = (*Reference[noopConfig])(nil)

type noopConfig struct{}

func (noopConfig) Validate() error { return nil }

// Debounce sets the debounce duration for change processing. Changes arriving
// within this duration are coalesced into a single update. Default: 100ms.
// Must be called before Start.
func (r *Reference[T]) Debounce(d time.Duration) *Reference[T] {
	r.debounce = d
	return r
}

// SyncMode disables background processing. After Start, each call to Process
// handles exactly one change. Must be called before Start.
func (r *Reference[T]) SyncMode() *Reference[T] {
	r.syncMode = true
	return r
}

// Clock sets the clock used for debouncing and the startup timeout.
// Must be called before Start.
func (r *Reference[T]) Clock(clock clockz.Clock) *Reference[T] {
	r.clock = clock
	return r
}

// Codec sets the codec for decoding documents. Default: JSONCodec.
// Must be called before Start.
func (r *Reference[T]) Codec(codec Codec) *Reference[T] {
	r.codec = codec
	return r
}

// StartupTimeout bounds how long Start waits for the first document.
// Default: no timeout. Must be called before Start.
func (r *Reference[T]) StartupTimeout(d time.Duration) *Reference[T] {
	r.startupTimeout = d
	return r
}

// ValidateTags also checks `validate:"..."` struct tags before calling
// T.Validate. Must be called before Start.
func (r *Reference[T]) ValidateTags() *Reference[T] {
	r.tags = true
	return r
}

// Metrics sets a metrics provider. Must be called before Start.
func (r *Reference[T]) Metrics(provider MetricsProvider) *Reference[T] {
	r.metrics = provider
	return r
}

// OnStop sets a callback invoked with the final state when watching stops.
// Must be called before Start.
func (r *Reference[T]) OnStop(fn func(State)) *Reference[T] {
	r.onStop = fn
	return r
}

// ErrorHistorySize sets the number of recent errors to retain. Use 0 (the
// default) to keep only the most recent error via LastError.
// Must be called before Start.
func (r *Reference[T]) ErrorHistorySize(n int) *Reference[T] {
	r.errorHistory = newErrorRing(n)
	return r
}

// State returns the current state.
func (r *Reference[T]) State() State {
	return State(r.state.Load())
}

// Current returns the current value and true, or the zero value and false if
// no value has been applied.
func (r *Reference[T]) Current() (T, bool) {
	ptr := r.current.Load()
	if ptr == nil {
		var zero T
		return zero, false
	}
	return *ptr, true
}

// Get returns the current value, or the zero value if none has been applied.
func (r *Reference[T]) Get() T {
	v, _ := r.Current()
	return v
}

// LastError returns the last error encountered, or nil.
func (r *Reference[T]) LastError() error {
	ptr := r.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent errors, oldest first, or nil when history is
// disabled.
func (r *Reference[T]) ErrorHistory() []error {
	return r.errorHistory.all()
}

// Executor returns the scope the Reference runs in.
func (r *Reference[T]) Executor() Executor {
	return r.scope
}

// Subscribe attaches s. If a value has been applied s receives it first.
// When watching stops s is closed; if the source failed s receives the
// failure first.
func (r *Reference[T]) Subscribe(s Subscriber[T]) Disposable {
	return r.values.Subscribe(s)
}

// HasSubscribers reports whether any subscriber is attached.
func (r *Reference[T]) HasSubscribers() bool {
	return r.values.HasSubscribers()
}

// Stream returns the Reference as a stream: the current value, if any,
// followed by every applied value until watching stops.
func (r *Reference[T]) Stream() Stream[T] {
	return FromPublisher[T](r)
}

// Publisher returns a StreamPublisher over Stream in the Reference's scope.
func (r *Reference[T]) Publisher() *StreamPublisher[T] {
	return NewStreamPublisher(r.Stream(), r.scope)
}

// Start begins collecting the source. It blocks until the first document has
// been processed, then continues in the background as a job of the scope.
//
// If the first document is rejected Start returns the error but keeps
// watching for a valid one. In sync mode only the first document is
// processed; use Process for each later one.
//
// Start can only be called once.
func (r *Reference[T]) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	if !r.scope.Active() {
		return ErrScopeClosed
	}

	capitan.Emit(ctx, ReferenceStarted,
		KeyDebounce.Field(r.debounce),
		KeyContentType.Field(r.codec.ContentType()),
	)

	changes, result := r.pump()

	startupCtx := ctx
	if r.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = r.clock.WithTimeout(ctx, r.startupTimeout)
		defer cancel()
	}

	var initialErr error
	select {
	case <-startupCtx.Done():
		if r.startupTimeout > 0 && errors.Is(startupCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("startup timeout: source did not emit initial value within %v", r.startupTimeout)
		}
		return startupCtx.Err()
	case raw, ok := <-changes:
		if !ok {
			err := <-result
			r.finish(ctx, err)
			if err != nil {
				return fmt.Errorf("source failed before emitting initial value: %w", err)
			}
			return errors.New("source closed before emitting initial value")
		}
		r.received(ctx)
		initialErr = r.process(ctx, raw)
	}

	if r.syncMode {
		r.changes = changes
		r.result = result
		return initialErr
	}

	r.scope.Launch(func(ctx context.Context) {
		r.watch(ctx, changes, result)
	})
	return initialErr
}

// Process waits for the next document and processes it. It is only available
// in sync mode and reports false when not in sync mode, when the source has
// ended, or when ctx is done first.
func (r *Reference[T]) Process(ctx context.Context) bool {
	if !r.syncMode || r.changes == nil {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	case raw, ok := <-r.changes:
		if !ok {
			r.changes = nil
			r.finish(ctx, <-r.result)
			return false
		}
		r.received(ctx)
		_ = r.process(ctx, raw) //nolint:errcheck // Errors stored via setError
		return true
	}
}

// pump collects the source as a job of the scope and forwards its documents.
// The changes channel closes when the source ends; result then yields the
// source's terminal error.
func (r *Reference[T]) pump() (<-chan []byte, <-chan error) {
	changes := make(chan []byte)
	result := make(chan error, 1)
	r.scope.Launch(func(ctx context.Context) {
		var err error
		defer func() {
			if p := recovered(recover()); p != nil {
				err = p
			}
			close(changes)
			result <- err
			close(result)
		}()
		err = r.source.Collect(ctx, func(raw []byte) error {
			select {
			case changes <- raw:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if ctx.Err() != nil {
			err = nil
		}
	})
	return changes, result
}

func (r *Reference[T]) received(ctx context.Context) {
	capitan.Emit(ctx, ReferenceChangeReceived)
	if r.metrics != nil {
		r.metrics.OnChangeReceived()
	}
}

// process decodes, validates and applies a single document.
func (r *Reference[T]) process(ctx context.Context, raw []byte) error {
	start := r.clock.Now()
	oldState := r.State()

	var result T
	if err := r.codec.Unmarshal(raw, &result); err != nil {
		r.fail(ctx, oldState, start, StageDecode, ReferenceDecodeFailed, err)
		return fmt.Errorf("decode failed: %w", TransactionFailed(err))
	}

	if err := r.validate(result); err != nil {
		r.fail(ctx, oldState, start, StageValidate, ReferenceValidationFailed, err)
		return fmt.Errorf("validation failed: %w", TransactionFailed(err))
	}

	var prev T
	if ptr := r.current.Load(); ptr != nil {
		prev = *ptr
	}

	req := &Request[T]{Previous: prev, Current: result, Raw: raw}
	processed, err := r.pipeline.Process(ctx, req)
	if err != nil {
		r.fail(ctx, oldState, start, StagePipeline, ReferenceApplyFailed, err)
		return fmt.Errorf("pipeline failed: %w", TransactionFailed(err))
	}

	r.current.Store(&processed.Current)
	r.lastError.Store(nil)
	r.errorHistory.clear()
	r.transitionState(ctx, oldState, StateHealthy)
	capitan.Emit(ctx, ReferenceApplySucceeded)
	if r.metrics != nil {
		r.metrics.OnProcessSuccess(r.clock.Since(start))
	}

	r.values.Submit(processed.Current)
	return nil
}

func (r *Reference[T]) validate(v T) error {
	if r.tags {
		if err := ValidateStruct(v); err != nil {
			return err
		}
	}
	return v.Validate()
}

func (r *Reference[T]) fail(ctx context.Context, oldState State, start time.Time, stage Stage, signal capitan.Signal, err error) {
	r.setError(err)
	r.transitionState(ctx, oldState, r.failureState())
	capitan.Emit(ctx, signal, KeyError.Field(err.Error()))
	if r.metrics != nil {
		r.metrics.OnProcessFailure(stage, r.clock.Since(start))
	}
}

// failureState returns the failure state based on whether a value has ever
// been applied.
func (r *Reference[T]) failureState() State {
	if r.current.Load() == nil {
		return StateEmpty
	}
	return StateDegraded
}

func (r *Reference[T]) transitionState(ctx context.Context, oldState, newState State) {
	if oldState == newState {
		return
	}
	r.state.Store(int32(newState))
	capitan.Emit(ctx, ReferenceStateChanged,
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	if r.metrics != nil {
		r.metrics.OnStateChange(oldState, newState)
	}
}

func (r *Reference[T]) setError(err error) {
	e := err
	r.lastError.Store(&e)
	r.errorHistory.push(err)
}

// finish ends every subscription once the source is done.
func (r *Reference[T]) finish(ctx context.Context, err error) {
	if err != nil {
		r.setError(err)
		r.values.Fail(err)
	} else {
		r.values.Close()
	}

	finalState := r.State()
	capitan.Emit(context.WithoutCancel(ctx), ReferenceStopped,
		KeyState.Field(finalState.String()),
	)
	if r.onStop != nil {
		r.onStop(finalState)
	}
}

// watch processes the remaining documents, debounced, until the source ends
// or the scope is cancelled.
func (r *Reference[T]) watch(ctx context.Context, changes <-chan []byte, result <-chan error) {
	rest := Stream[[]byte](func(ctx context.Context, emit func([]byte) error) error {
		if err := FromChannel(changes)(ctx, emit); err != nil {
			return err
		}
		return <-result
	})

	err := rest.
		OnEach(func([]byte) { r.received(ctx) }).
		Debounce(r.clock, r.debounce).
		Collect(ctx, func(raw []byte) error {
			_ = r.process(ctx, raw) //nolint:errcheck // Errors stored via setError
			return nil
		})
	if ctx.Err() != nil {
		err = nil
	}
	r.finish(ctx, err)
}
