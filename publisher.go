package relay

// Publisher is a source of values that subscribers attach to.
type Publisher[V any] interface {
	// Executor returns the executor that work for this publisher runs on.
	Executor() Executor

	// Subscribe attaches s and returns a handle that detaches it.
	Subscribe(s Subscriber[V]) Disposable

	// HasSubscribers reports whether the publisher is still serving subscribers.
	HasSubscribers() bool
}

// Mapper transforms a value. A returned error rejects the value and is
// reported as a TransactionError.
type Mapper[V, R any] func(V) (R, error)
