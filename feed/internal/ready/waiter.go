// CLAUDE:SUMMARY Decides when a navigated Teams page is usable: marker wait, advisory registration wait, quiescence, bounded try-again.
// Package ready detects when the Teams client has rendered its main surface
// after a navigation.
//
// Waiting is advisory. Timeouts are logged and converted into an Outcome;
// only context cancellation is returned as an error. The "try again" retry
// loop is capped by Config.MaxTryAgain.
package ready

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/teamsfeed/feed/internal/browser"
)

// Outcome is the result of a readiness wait.
type Outcome int

const (
	// OutcomeReady: the marker rendered and the page settled.
	OutcomeReady Outcome = iota
	// OutcomeNoMarker: neither the marker nor the try-again link appeared.
	OutcomeNoMarker
	// OutcomeRetriesExhausted: try-again was clicked MaxTryAgain times
	// without the marker ever appearing.
	OutcomeRetriesExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeNoMarker:
		return "no_marker"
	case OutcomeRetriesExhausted:
		return "retries_exhausted"
	}
	return "unknown"
}

// Result describes a finished readiness wait.
type Result struct {
	Outcome Outcome
	// Retries counts try-again clicks.
	Retries int
	// Registered is false when the registration request was not seen in
	// time.
	Registered bool
}

// Ready reports whether the main surface rendered.
func (r Result) Ready() bool { return r.Outcome == OutcomeReady }

// Config configures a Waiter.
type Config struct {
	// Marker proves the main surface rendered.
	Marker string
	// TryAgain is the retry link offered when the client fails to load.
	TryAgain string
	// RegistrationURL prefixes the request the client sends once it has
	// registered with its backend.
	RegistrationURL string

	MarkerTimeout       time.Duration // default 60s
	RegistrationTimeout time.Duration // default 60s
	Quiescence          time.Duration // zero disables
	TryAgainTimeout     time.Duration // default 5s

	// MaxTryAgain caps try-again clicks per Wait. Default 3.
	MaxTryAgain int

	Logger *slog.Logger

	// Sleep is the quiescence delay. Default sleeps on a timer, honouring
	// ctx. Tests inject a recorder.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *Config) defaults() {
	if c.MarkerTimeout <= 0 {
		c.MarkerTimeout = 60 * time.Second
	}
	if c.RegistrationTimeout <= 0 {
		c.RegistrationTimeout = 60 * time.Second
	}
	if c.Quiescence < 0 {
		c.Quiescence = 0
	}
	if c.TryAgainTimeout <= 0 {
		c.TryAgainTimeout = 5 * time.Second
	}
	if c.MaxTryAgain <= 0 {
		c.MaxTryAgain = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Sleep == nil {
		c.Sleep = sleepCtx
	}
}

// Waiter runs readiness waits. Safe for sequential reuse across pages.
type Waiter struct {
	cfg Config
}

// New creates a Waiter.
func New(cfg Config) *Waiter {
	cfg.defaults()
	return &Waiter{cfg: cfg}
}

// Wait blocks until page is ready or the fallbacks are spent.
func (w *Waiter) Wait(ctx context.Context, page browser.Page) (Result, error) {
	log := w.cfg.Logger
	var res Result

	for {
		marker, err := page.Element(ctx, w.cfg.Marker, w.cfg.MarkerTimeout)
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err == nil && marker != nil {
			return w.settle(ctx, page, res)
		}
		logLookup(log, "ready: timed out waiting for main surface", w.cfg.Marker, err)

		if res.Retries >= w.cfg.MaxTryAgain {
			log.Warn("ready: try-again budget spent", "retries", res.Retries)
			res.Outcome = OutcomeRetriesExhausted
			return res, nil
		}

		link, err := page.Element(ctx, w.cfg.TryAgain, w.cfg.TryAgainTimeout)
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err != nil || link == nil {
			logLookup(log, "ready: cannot try again", w.cfg.TryAgain, err)
			res.Outcome = OutcomeNoMarker
			return res, nil
		}

		log.Info("ready: trying again", "attempt", res.Retries+1)
		if err := link.Click(ctx); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn("ready: try-again click failed", "error", err)
			res.Outcome = OutcomeNoMarker
			return res, nil
		}
		res.Retries++
	}
}

// settle runs the advisory registration wait and the quiescence delay.
func (w *Waiter) settle(ctx context.Context, page browser.Page, res Result) (Result, error) {
	log := w.cfg.Logger

	err := page.WaitRequest(ctx, w.cfg.RegistrationURL, w.cfg.RegistrationTimeout)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		logLookup(log, "ready: timed out waiting for registration request", w.cfg.RegistrationURL, err)
	} else {
		res.Registered = true
	}

	log.Debug("ready: waiting for trailing requests", "quiescence", w.cfg.Quiescence)
	if err := w.cfg.Sleep(ctx, w.cfg.Quiescence); err != nil {
		return res, err
	}

	res.Outcome = OutcomeReady
	return res, nil
}

// logLookup logs a failed wait: timeouts at Warn, anything else at Error.
func logLookup(log *slog.Logger, msg, target string, err error) {
	if err == nil || errors.Is(err, browser.ErrTimeout) {
		log.Warn(msg, "target", target)
		return
	}
	log.Error(msg, "target", target, "error", err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
