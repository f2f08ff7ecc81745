package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hazyhaar/teamsfeed/feed/item"
)

// Router delivers each update to every sink in order. A failing sink is
// logged and skipped; the joined failures are returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger

	mu   sync.Mutex
	last []*item.Feed // last feed each sink accepted, nil before the first
}

// NewRouter creates a Router. Nil sinks are dropped.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Router{sinks: kept, logger: logger, last: make([]*item.Feed, len(kept))}
}

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Send(ctx context.Context, u Update) error {
	var errs []error
	for i, s := range r.sinks {
		if err := s.Send(ctx, u); err != nil {
			r.logger.Warn("sink: delivery failed", "sink", i, "items", u.Feed.Len(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deliver sends u to each sink whose last accepted feed differs from
// u.Feed, so a sink that failed is retried on the next call without
// repeating the update to sinks that already took it. It returns how many
// sinks accepted u and the joined failures.
func (r *Router) Deliver(ctx context.Context, u Update) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		sent int
		errs []error
	)
	for i, s := range r.sinks {
		if last := r.last[i]; last != nil && last.Equal(u.Feed) {
			continue
		}
		if err := s.Send(ctx, u); err != nil {
			r.logger.Warn("sink: delivery failed", "sink", i, "items", u.Feed.Len(), "error", err)
			errs = append(errs, err)
			continue
		}
		f := u.Feed
		r.last[i] = &f
		sent++
	}
	return sent, errors.Join(errs...)
}

func (r *Router) Close() error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
