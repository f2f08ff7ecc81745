// CLAUDE:SUMMARY In-process callback sink delivering feed updates via a Go function call.
package sink

import "context"

// Func is called for each update.
type Func func(ctx context.Context, u Update) error

// Callback delivers updates in-process, for embedders that render the feed
// themselves.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn Func) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, u Update) error {
	if c.fn != nil {
		return c.fn(ctx, u)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
