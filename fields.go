package relay

import "github.com/zoobzio/capitan"

// Field keys for relay events.
var (
	// KeySubscription identifies a single subscription.
	KeySubscription = capitan.NewStringKey("subscription")

	// KeyDelivered is the number of values a subscription delivered.
	KeyDelivered = capitan.NewIntKey("delivered")

	// KeySubscribers is the number of subscribers attached to a processor.
	KeySubscribers = capitan.NewIntKey("subscribers")

	// KeyState is the current state of a Reference.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeyContentType is the codec content type used to decode changes.
	KeyContentType = capitan.NewStringKey("content_type")
)
