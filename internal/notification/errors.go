package notification

import "errors"

var (
	// ErrConfiguration marks run-level configuration problems. No subscription
	// is touched when a run fails with it.
	ErrConfiguration = errors.New("configuration error")

	ErrListSubscriptions     = errors.New("list active subscriptions")
	ErrRunInProgress         = errors.New("dispatch run already in progress")
	ErrEndpointGone          = errors.New("push endpoint gone")
	ErrGenerationUnavailable = errors.New("content generation unavailable")
)
