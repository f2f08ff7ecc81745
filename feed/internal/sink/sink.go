// Package sink defines output backends for the notification feed.
package sink

import (
	"context"
	"time"

	"github.com/hazyhaar/teamsfeed/feed/item"
)

// Sink delivers feed updates. Implementations: stdout, webhook, in-process
// callback, fan-out router.
type Sink interface {
	Send(ctx context.Context, u Update) error
	Close() error
}

// Update is one published feed.
type Update struct {
	Feed item.Feed `json:"feed"`
	At   time.Time `json:"at"`
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
