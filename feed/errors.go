package feed

import "errors"

var (
	// ErrBusy is returned when Initialize or Login is called while
	// another session operation is in flight.
	ErrBusy = errors.New("feed: session operation in flight")

	// ErrSessionUnavailable is returned once the attempt budget is spent.
	ErrSessionUnavailable = errors.New("feed: cannot establish session")

	// ErrLoginFailed wraps every failure of the interactive sign-in.
	ErrLoginFailed = errors.New("feed: login failed")
)
