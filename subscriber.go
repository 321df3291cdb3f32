package relay

// Subscriber receives values from a Publisher.
//
// A subscription delivers zero or more values through Submit, at most one
// OnError, and finally one OnClose. OnClose is the terminal signal on every
// path, including after an error.
type Subscriber[V any] interface {
	// Submit receives the next value.
	Submit(value V)

	// OnError receives the failure that ended the subscription.
	OnError(err error)

	// OnClose is called once when no further values will be delivered.
	OnClose()
}

// Callbacks implements Subscriber with optional functions. Nil fields are
// ignored.
type Callbacks[V any] struct {
	OnValue    func(V)
	OnFailure  func(error)
	OnComplete func()
}

// Submit calls OnValue.
func (c Callbacks[V]) Submit(value V) {
	if c.OnValue != nil {
		c.OnValue(value)
	}
}

// OnError calls OnFailure.
func (c Callbacks[V]) OnError(err error) {
	if c.OnFailure != nil {
		c.OnFailure(err)
	}
}

// OnClose calls OnComplete.
func (c Callbacks[V]) OnClose() {
	if c.OnComplete != nil {
		c.OnComplete()
	}
}

// SubscriberFunc returns a Subscriber that only observes values.
func SubscriberFunc[V any](fn func(V)) Subscriber[V] {
	return Callbacks[V]{OnValue: fn}
}

// TransactionalSubscriber stages each value before exposing it.
//
// BeginTransaction validates and prepares a value; the prepared value must
// not be visible until Commit. Rollback discards it. Commit and Rollback are
// no-ops when no transaction is in progress.
type TransactionalSubscriber[V any] interface {
	BeginTransaction(value V) error
	Commit()
	Rollback()
	OnError(err error)
	OnClose()
}

// Transactional adapts ts to Subscriber. Each submitted value begins a
// transaction that is committed on success and rolled back if
// BeginTransaction fails.
func Transactional[V any](ts TransactionalSubscriber[V]) Subscriber[V] {
	return transactional[V]{ts}
}

type transactional[V any] struct {
	TransactionalSubscriber[V]
}

func (t transactional[V]) Submit(value V) {
	if err := t.BeginTransaction(value); err != nil {
		t.Rollback()
		return
	}
	t.Commit()
}
