package feed

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAuthenticated
	StateNeedsLogin
	StateLoggingIn
	// StateFailed is terminal until an operator re-initializes: the
	// attempt budget was spent without reaching the landing URL.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateNeedsLogin:
		return "needs_login"
	case StateLoggingIn:
		return "logging_in"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
