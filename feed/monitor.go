package feed

import (
	"context"
	"errors"
	"time"
)

// Run establishes the session and then keeps it healthy until ctx is
// cancelled: every Browser.MonitorInterval it recycles the session once
// it is older than Browser.RecycleInterval or its page heap exceeds
// Browser.MemoryLimit. A failed establishment leaves the service serving
// the placeholder until Trigger succeeds.
func (s *Service) Run(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	s.establish(ctx)

	ticker := time.NewTicker(s.cfg.Browser.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reason := s.recycleReason(ctx); reason != "" {
				s.logger.Info("feed: recycling session", "reason", reason)
				s.establish(ctx)
			}
		}
	}
}

// Start runs Run in a goroutine.
func (s *Service) Start(ctx context.Context) {
	go s.Run(ctx)
}

func (s *Service) establish(ctx context.Context) {
	err := s.Initialize(ctx)
	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, ErrBusy):
		s.logger.Debug("feed: session operation already running")
	default:
		s.logger.Error("feed: session unavailable, serving placeholder", "error", err)
	}
}

// recycleReason returns why the authenticated session should be rebuilt,
// or "" when it is healthy.
func (s *Service) recycleReason(ctx context.Context) string {
	s.mu.RLock()
	state, page, authAt := s.state, s.page, s.authAt
	s.mu.RUnlock()
	if state != StateAuthenticated || page == nil {
		return ""
	}

	if s.now().Sub(authAt) >= s.cfg.Browser.RecycleInterval {
		return "interval"
	}

	heap, err := page.HeapUsage(ctx)
	if err != nil {
		s.logger.Debug("feed: heap usage unavailable", "error", err)
		return ""
	}
	if heap > s.cfg.Browser.MemoryLimit {
		s.logger.Warn("feed: page memory over limit", "heap_bytes", heap, "limit", s.cfg.Browser.MemoryLimit)
		return "memory"
	}
	return ""
}
