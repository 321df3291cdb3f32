/*
Package relay bridges lazy value streams to push-based publishers, and builds
validated, live configuration references on top of them.

A Stream is a cold, lazily evaluated sequence of values. Nothing runs until it
is collected, and every collection starts the producer again:

	numbers := relay.Of(1, 2, 3)
	doubled := relay.Map(numbers, func(n int) (int, error) { return n * 2, nil })
	values, err := doubled.ToSlice(ctx)

# Publishers

A StreamPublisher exposes a Stream to push-style subscribers. Each Subscribe
launches an independent collection in the publisher's Scope and delivers
values, then exactly one terminal signal:

	scope := relay.NewScope(ctx)
	defer scope.Close()

	pub := relay.NewStreamPublisher(doubled, scope)
	sub := pub.Subscribe(relay.Callbacks[int]{
	    OnValue:    func(n int) { fmt.Println(n) },
	    OnFailure:  func(err error) { log.Print(err) },
	    OnComplete: func() { fmt.Println("done") },
	})
	defer sub.Dispose()

A stream failure is reported with OnError followed by OnClose. Disposing a
subscription, or closing the scope, cancels the collection and calls OnClose.
Panics in Submit are converted to a PanicError and reported as the stream's
failure.

Subscribers that stage each value before making it visible can implement
TransactionalSubscriber and subscribe through Transactional. A value whose
BeginTransaction fails is rolled back and the subscription continues.

Processor is a hot publisher fed by Submit, Fail and Close. Streams and
publishers convert in both directions with FromPublisher and
NewStreamPublisher.

# References

A Reference watches a source of raw documents, decodes and validates each one,
runs it through a pipz pipeline, and publishes accepted values:

	type Config struct {
	    Port int    `json:"port" validate:"min=1,max=65535"`
	    Host string `json:"host" validate:"required"`
	}

	func (c Config) Validate() error { return nil }

	ref := relay.NewReference[Config](file.New("config.json").Stream(), scope,
	    relay.WithRetry[Config](3),
	).ValidateTags()

	if err := ref.Start(ctx); err != nil {
	    // first document rejected; ref keeps watching
	}

	cfg := ref.Get()

Rejected documents never reach subscribers. The Reference keeps the previous
value and moves to StateDegraded, or StateEmpty if nothing has been applied.

Sources for files, Redis, etcd, Consul, NATS, ZooKeeper, PostgreSQL,
Firestore and Kubernetes live under pkg/.

# Observability

Lifecycle events are emitted as capitan signals (see signals.go). A
MetricsProvider can be attached to a Reference for counters and timings.
*/
package relay
