package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/teamsfeed/feed/internal/sink"
	"github.com/hazyhaar/teamsfeed/feed/item"
)

// Source produces feed snapshots. *Service implements it.
type Source interface {
	GetData(ctx context.Context) (item.Feed, error)
}

// Poller reads a Source on an interval and pushes changed snapshots to
// its sinks. Delivery is tracked per sink: a sink that fails gets the
// snapshot again on the next poll, the others do not.
type Poller struct {
	src      Source
	router   *sink.Router
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewPoller creates a Poller. A non-positive interval defaults to one minute.
func NewPoller(src Source, interval time.Duration, logger *slog.Logger, sinks ...Sink) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		src:      src,
		router:   sink.NewRouter(logger, sinks...),
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Poll reads the source once and delivers the snapshot to every sink
// whose last accepted snapshot differs. It reports whether any sink
// received it.
func (p *Poller) Poll(ctx context.Context) (bool, error) {
	feed, err := p.src.GetData(ctx)
	if err != nil {
		return false, err
	}
	n, err := p.router.Deliver(ctx, Update{Feed: feed, At: p.now()})
	return n > 0, err
}

// Run polls until ctx is cancelled. Errors are logged, never fatal.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("feed: poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close closes every sink.
func (p *Poller) Close() error {
	return p.router.Close()
}
