package relay

import "github.com/zoobzio/capitan"

// Subscription lifecycle signals.
var (
	// SubscriptionStarted is emitted when a subscription begins collecting its stream.
	SubscriptionStarted = capitan.NewSignal(
		"relay.subscription.started",
		"Subscription started",
	)

	// SubscriptionFailed is emitted when a subscription's stream fails.
	SubscriptionFailed = capitan.NewSignal(
		"relay.subscription.failed",
		"Subscription stream failed",
	)

	// SubscriptionCompleted is emitted when a subscription's stream is exhausted or failed.
	SubscriptionCompleted = capitan.NewSignal(
		"relay.subscription.completed",
		"Subscription completed",
	)

	// SubscriptionDisposed is emitted when a subscription ends by cancellation.
	SubscriptionDisposed = capitan.NewSignal(
		"relay.subscription.disposed",
		"Subscription disposed",
	)

	// SubscriberPanicked is emitted when a subscriber callback panics.
	SubscriberPanicked = capitan.NewSignal(
		"relay.subscriber.panicked",
		"Subscriber callback panicked",
	)

	// ProcessorSubscribed is emitted when a subscriber attaches to a processor.
	ProcessorSubscribed = capitan.NewSignal(
		"relay.processor.subscribed",
		"Subscriber attached to processor",
	)

	// ProcessorUnsubscribed is emitted when a subscriber detaches from a processor.
	ProcessorUnsubscribed = capitan.NewSignal(
		"relay.processor.unsubscribed",
		"Subscriber detached from processor",
	)

	// ScopeTaskFailed is emitted when a task submitted to a scope panics.
	ScopeTaskFailed = capitan.NewSignal(
		"relay.scope.task.failed",
		"Scope task panicked",
	)
)

// Reference lifecycle signals.
var (
	// ReferenceStarted is emitted when a Reference begins watching its source.
	ReferenceStarted = capitan.NewSignal(
		"relay.reference.started",
		"Reference watching started",
	)

	// ReferenceStopped is emitted when a Reference stops watching.
	ReferenceStopped = capitan.NewSignal(
		"relay.reference.stopped",
		"Reference watching stopped",
	)

	// ReferenceStateChanged is emitted when a Reference transitions between states.
	ReferenceStateChanged = capitan.NewSignal(
		"relay.reference.state.changed",
		"Reference state transition",
	)
)

// Change processing signals.
var (
	// ReferenceChangeReceived is emitted when raw data arrives from the source.
	ReferenceChangeReceived = capitan.NewSignal(
		"relay.reference.change.received",
		"Raw change received from source",
	)

	// ReferenceDecodeFailed is emitted when raw data cannot be decoded.
	ReferenceDecodeFailed = capitan.NewSignal(
		"relay.reference.decode.failed",
		"Decode failed",
	)

	// ReferenceValidationFailed is emitted when a decoded value fails validation.
	ReferenceValidationFailed = capitan.NewSignal(
		"relay.reference.validation.failed",
		"Validation failed",
	)

	// ReferenceApplyFailed is emitted when the processing pipeline rejects a value.
	ReferenceApplyFailed = capitan.NewSignal(
		"relay.reference.apply.failed",
		"Pipeline rejected value",
	)

	// ReferenceApplySucceeded is emitted when a value is stored and published.
	ReferenceApplySucceeded = capitan.NewSignal(
		"relay.reference.apply.succeeded",
		"Value applied and published",
	)
)
