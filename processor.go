package relay

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
)

// Processor is a hot Publisher: values submitted to it are delivered to every
// subscriber attached at that moment, in submission order.
//
// Delivery is serialized through a queue. Calls made from inside a subscriber
// callback, including Submit and Subscribe on the same processor, are queued
// and run once the callback returns. When goroutines submit concurrently,
// delivery runs on whichever goroutine is already draining the queue.
type Processor[V any] struct {
	executor Executor
	cache    bool

	mu       sync.Mutex
	queue    []func()
	draining bool

	// Accepted state, updated as soon as a call is made.
	closed  bool
	latest  V
	hasLast bool

	// Delivered state, updated by the drain loop.
	subs       []*registration[V]
	done       bool
	failure    error
	current    V
	hasCurrent bool
}

type registration[V any] struct {
	sub  Subscriber[V]
	once sync.Once
}

func (r *registration[V]) close() {
	r.once.Do(func() {
		guard(context.Background(), "", r.sub.OnClose)
	})
}

// NewProcessor creates a processor that reports executor as its Executor.
// A nil executor means DirectExecutor.
func NewProcessor[V any](executor Executor) *Processor[V] {
	if executor == nil {
		executor = DirectExecutor
	}
	return &Processor[V]{executor: executor}
}

// NewCachedProcessor creates a processor that remembers the latest value and
// replays it to each new subscriber before any later value.
func NewCachedProcessor[V any](executor Executor, initial V) *Processor[V] {
	p := NewProcessor[V](executor)
	p.cache = true
	p.latest, p.hasLast = initial, true
	p.current, p.hasCurrent = initial, true
	return p
}

// Ensure Processor implements Publisher.
var _ Publisher[struct{}] = (*Processor[struct{}])(nil)

// Executor returns the processor's executor.
func (p *Processor[V]) Executor() Executor {
	return p.executor
}

// HasSubscribers reports whether any subscriber is attached.
func (p *Processor[V]) HasSubscribers() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs) > 0
}

// Get returns the cached value. It reports false for an uncached processor.
func (p *Processor[V]) Get() (V, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cache || !p.hasLast {
		var zero V
		return zero, false
	}
	return p.latest, true
}

// run queues task and, unless another call is already draining the queue,
// drains it on the calling goroutine.
func (p *Processor[V]) run(task func()) {
	p.mu.Lock()
	p.queue = append(p.queue, task)
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		next := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		next()
	}
}

// Subscribe attaches s. A cached processor first delivers its latest value.
// Subscribing to a closed processor replays the terminal signals at once.
// Disposing the handle detaches s and calls s.OnClose.
func (p *Processor[V]) Subscribe(s Subscriber[V]) Disposable {
	reg := &registration[V]{sub: s}

	p.run(func() {
		p.mu.Lock()
		done, failure := p.done, p.failure
		value, replay := p.current, p.cache && p.hasCurrent
		if !done {
			p.subs = append(p.subs, reg)
		}
		count := len(p.subs)
		p.mu.Unlock()

		if done {
			if failure != nil {
				guard(context.Background(), "", func() { s.OnError(failure) })
			}
			reg.close()
			return
		}
		capitan.Emit(context.Background(), ProcessorSubscribed, KeySubscribers.Field(count))
		if replay {
			p.submitTo(reg, value)
		}
	})

	return DisposableFunc(func() {
		p.run(func() {
			if p.remove(reg) {
				reg.close()
			}
		})
	})
}

// Submit delivers v to every attached subscriber. It is ignored after Close
// or Fail.
func (p *Processor[V]) Submit(v V) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.cache {
		p.latest, p.hasLast = v, true
	}
	p.mu.Unlock()

	p.run(func() {
		p.mu.Lock()
		if p.cache {
			p.current, p.hasCurrent = v, true
		}
		subs := append([]*registration[V](nil), p.subs...)
		p.mu.Unlock()

		for _, reg := range subs {
			p.submitTo(reg, v)
		}
	})
}

// submitTo delivers v to one subscriber. A panicking subscriber is detached
// after receiving the panic through OnError.
func (p *Processor[V]) submitTo(reg *registration[V], v V) {
	defer func() {
		if err := recovered(recover()); err != nil {
			capitan.Emit(context.Background(), SubscriberPanicked, KeyError.Field(err.Error()))
			p.remove(reg)
			guard(context.Background(), "", func() { reg.sub.OnError(err) })
			reg.close()
		}
	}()
	reg.sub.Submit(v)
}

// Fail ends every subscription with err, then closes them.
func (p *Processor[V]) Fail(err error) {
	p.terminate(err)
}

// Close completes every subscription.
func (p *Processor[V]) Close() {
	p.terminate(nil)
}

func (p *Processor[V]) terminate(err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.run(func() {
		p.mu.Lock()
		p.done = true
		p.failure = err
		subs := p.subs
		p.subs = nil
		p.mu.Unlock()

		for _, reg := range subs {
			if err != nil {
				guard(context.Background(), "", func() { reg.sub.OnError(err) })
			}
			reg.close()
		}
	})
}

// remove detaches reg and reports whether it was attached.
func (p *Processor[V]) remove(reg *registration[V]) bool {
	p.mu.Lock()
	removed := false
	for i, r := range p.subs {
		if r == reg {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			removed = true
			break
		}
	}
	count := len(p.subs)
	p.mu.Unlock()

	if removed {
		capitan.Emit(context.Background(), ProcessorUnsubscribed, KeySubscribers.Field(count))
	}
	return removed
}

// Closed reports whether the processor has been closed or failed.
func (p *Processor[V]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
