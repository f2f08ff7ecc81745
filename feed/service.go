// CLAUDE:SUMMARY Session manager: bounded initialize/login state machine, surface ownership, scrape delegation and recycling.
// Package feed turns the Microsoft Teams web client into a notification
// feed. Service owns the browser session: it restores or establishes it,
// re-runs the interactive sign-in when the stored profile is no longer
// valid, and serves the conversation list through GetData.
//
// Exactly one Service should exist per process. Construct it in main and
// pass it to the HTTP, MCP and poller surfaces.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/teamsfeed/feed/internal/browser"
	"github.com/hazyhaar/teamsfeed/feed/internal/journal"
	"github.com/hazyhaar/teamsfeed/feed/internal/ready"
	"github.com/hazyhaar/teamsfeed/feed/internal/scrape"
	"github.com/hazyhaar/teamsfeed/feed/item"
)

// Service is the session manager. It is the only writer of the session
// state and the only owner of the browser surface.
type Service struct {
	cfg       *Config
	logger    *slog.Logger
	launcher  browser.Launcher
	waiter    *ready.Waiter
	scraper   *scrape.Scraper
	journal   *journal.Journal
	removeAll func(path string) error
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time

	// busy guards Initialize and Login: one in flight at a time.
	busy atomic.Bool
	// scrapeMu serialises page reads and surface swaps.
	scrapeMu sync.Mutex

	mu       sync.RWMutex
	state    State
	lastErr  error
	surface  browser.Surface
	page     browser.Page
	authAt   time.Time
	attempts int
	runCtx   context.Context
}

// Option configures a Service.
type Option func(*Service)

// WithLauncher replaces the go-rod launcher.
func WithLauncher(l browser.Launcher) Option {
	return func(s *Service) { s.launcher = l }
}

// WithJournal records every session attempt in j. The caller closes j.
func WithJournal(j *Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithSessionRemover replaces os.RemoveAll for session directory resets.
func WithSessionRemover(fn func(path string) error) Option {
	return func(s *Service) { s.removeAll = fn }
}

// WithSleep replaces the timer used for retry backoff and page quiescence.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = fn }
}

// WithClock sets a custom clock function (for testing).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

// New creates a Service from configuration. Unset fields in cfg take their
// defaults; cfg itself is not modified. Call Start or Run to establish the
// session.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		c := *cfg
		c.ApplyDefaults()
		cfg = &c
	}
	if logger == nil {
		logger = slog.Default()
	}
	filter, err := scrape.ParseFilter(cfg.Feed.Filter)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		removeAll: os.RemoveAll,
		sleep:     sleepCtx,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	if s.launcher == nil {
		s.launcher = browser.NewRod(browser.RodConfig{
			Bin:              cfg.Browser.Bin,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			XvfbDisplay:      cfg.Browser.XvfbDisplay,
			Logger:           logger,
		})
	}

	s.waiter = ready.New(ready.Config{
		Marker:              cfg.Selectors.ReadyMarker,
		TryAgain:            cfg.Selectors.TryAgain,
		RegistrationURL:     cfg.Client.RegistrationURL,
		MarkerTimeout:       cfg.Timeouts.ReadyMarker,
		RegistrationTimeout: cfg.Timeouts.Registration,
		Quiescence:          cfg.Timeouts.Quiescence,
		TryAgainTimeout:     cfg.Timeouts.TryAgain,
		MaxTryAgain:         cfg.Retry.MaxTryAgain,
		Logger:              logger,
		Sleep:               s.sleep,
	})

	s.scraper = scrape.New(scrape.Config{
		ChatList: cfg.Selectors.ChatList,
		Thread:   cfg.Selectors.Thread,
		Unread:   cfg.Selectors.Unread,
		Icon:     cfg.Client.IconPath,
		Timeout:  cfg.Timeouts.ChatList,
		Filter:   filter,
		Logger:   logger,
	})

	return s, nil
}

// State returns the current session state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error that left the session unestablished, if any.
func (s *Service) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Status is a point-in-time view of the session.
type Status struct {
	State           State      `json:"state"`
	Error           string     `json:"error,omitempty"`
	AuthenticatedAt *time.Time `json:"authenticated_at,omitempty"`
	Attempts        int        `json:"attempts"`
	Busy            bool       `json:"busy"`
	SessionDir      string     `json:"session_dir"`
}

// Status returns the current session status.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		State:      s.state,
		Attempts:   s.attempts,
		Busy:       s.busy.Load(),
		SessionDir: s.cfg.Browser.SessionDir,
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	if !s.authAt.IsZero() && s.state == StateAuthenticated {
		at := s.authAt
		st.AuthenticatedAt = &at
	}
	return st
}

// GetData returns the notification feed. It never waits on session
// establishment: unless the session is authenticated it returns the
// single-item placeholder at once. Scrape failures are returned as errors.
func (s *Service) GetData(ctx context.Context) (item.Feed, error) {
	if s.State() != StateAuthenticated {
		return s.placeholder(), nil
	}

	s.scrapeMu.Lock()
	defer s.scrapeMu.Unlock()

	// Re-check: a transition may have started while we waited.
	s.mu.RLock()
	state, page := s.state, s.page
	s.mu.RUnlock()
	if state != StateAuthenticated || page == nil {
		return s.placeholder(), nil
	}

	feed, err := s.scraper.Scrape(ctx, page)
	if err != nil {
		return item.Feed{}, fmt.Errorf("feed: scrape: %w", err)
	}
	return feed, nil
}

func (s *Service) placeholder() item.Feed {
	return item.NotReady(s.cfg.Client.Placeholder, s.cfg.Client.IconPath)
}

// Initialize establishes the session. It restores the stored profile when
// it still reaches the landing URL; otherwise it deletes the profile, runs
// the interactive sign-in and checks again. After Retry.MaxAttempts failed
// checks the state becomes StateFailed and an error wrapping
// ErrSessionUnavailable is returned.
func (s *Service) Initialize(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)
	return s.initialize(ctx)
}

// Trigger starts Initialize in the background on the Run context. It is
// the operator path out of StateFailed.
func (s *Service) Trigger() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	s.mu.RLock()
	ctx := s.runCtx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer s.busy.Store(false)
		if err := s.initialize(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("feed: re-initialization failed", "error", err)
		}
	}()
	return nil
}

func (s *Service) initialize(ctx context.Context) error {
	log := s.logger
	landing := s.cfg.Client.LandingURL
	maxAttempts := s.cfg.Retry.MaxAttempts

	failures := 0
	for attempt := 1; ; attempt++ {
		started := s.now()
		u, signedIn, err := s.check(ctx)
		if ctx.Err() != nil {
			return s.abort(ctx.Err())
		}

		if err == nil && signedIn {
			log.Info("feed: Microsoft Teams initialized", "attempt", attempt, "url", u)
			s.record(ctx, journal.Attempt{Attempt: attempt, Outcome: journal.OutcomeAuthenticated,
				URL: u, StartedAt: started, EndedAt: s.now()})
			return nil
		}

		failures++
		cause := err
		outcome := journal.OutcomeError
		if err == nil {
			cause = fmt.Errorf("landing URL not reached, at %q", u)
			outcome = journal.OutcomeNeedsLogin
		}
		s.record(ctx, journal.Attempt{Attempt: attempt, Outcome: outcome,
			URL: u, Error: errString(err), StartedAt: started, EndedAt: s.now()})

		if failures >= maxAttempts {
			return s.exhausted(ctx, attempt, cause)
		}

		if err != nil {
			log.Warn("feed: session check failed", "attempt", attempt, "error", err)
			if err := s.sleep(ctx, s.backoff(failures)); err != nil {
				return s.abort(err)
			}
			continue
		}

		log.Info("feed: not signed in", "attempt", attempt, "url", u, "want", landing)
		loginStarted := s.now()
		if err := s.relogin(ctx); err != nil {
			if ctx.Err() != nil {
				return s.abort(ctx.Err())
			}
			log.Error("feed: sign-in failed", "attempt", attempt, "error", err)
			s.record(ctx, journal.Attempt{Attempt: attempt, Outcome: journal.OutcomeLoginFailed,
				Error: err.Error(), StartedAt: loginStarted, EndedAt: s.now()})
			s.setErr(err)
			if err := s.sleep(ctx, s.backoff(failures)); err != nil {
				return s.abort(err)
			}
		}
	}
}

// check launches the headless surface on the stored profile, loads the
// landing URL and reports where the client ended up. When signed in the
// surface is installed as the scrape surface.
func (s *Service) check(ctx context.Context) (string, bool, error) {
	s.setState(StateInitializing)
	s.dropSurface()

	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()

	surf, err := s.launcher.Launch(ctx, browser.LaunchOptions{
		Headless:       true,
		ProfileDir:     s.cfg.Browser.SessionDir,
		BlockResources: true,
	})
	if err != nil {
		return "", false, fmt.Errorf("feed: launch: %w", err)
	}

	u, err := s.open(ctx, surf)
	if err != nil {
		s.closeSurface(surf)
		return u, false, err
	}
	if !strings.Contains(u, s.cfg.Client.LandingURL) {
		s.closeSurface(surf)
		return u, false, nil
	}
	return u, true, nil
}

// open navigates a fresh page of surf to the landing URL, waits for
// readiness and returns the resulting location. On the landing URL the
// page and surface become the session's.
func (s *Service) open(ctx context.Context, surf browser.Surface) (string, error) {
	page, err := surf.NewPage(ctx)
	if err != nil {
		return "", fmt.Errorf("feed: new page: %w", err)
	}
	if err := s.navigate(ctx, page); err != nil {
		return "", err
	}

	res, err := s.waiter.Wait(ctx, page)
	if err != nil {
		return "", fmt.Errorf("feed: readiness: %w", err)
	}
	if !res.Ready() {
		s.logger.Warn("feed: page not ready, checking location anyway",
			"outcome", res.Outcome, "retries", res.Retries)
	}

	u, err := page.URL(ctx)
	if err != nil {
		return "", fmt.Errorf("feed: location: %w", err)
	}

	if strings.Contains(u, s.cfg.Client.LandingURL) {
		s.mu.Lock()
		s.surface = surf
		s.page = page
		s.state = StateAuthenticated
		s.authAt = s.now()
		s.lastErr = nil
		s.mu.Unlock()
	}
	return u, nil
}

// navigate loads the landing URL. Hitting the navigation timeout is not
// fatal: single-page redirects may keep the network busy, and the
// readiness wait and location check still decide.
func (s *Service) navigate(ctx context.Context, page browser.Page) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Navigation)
	defer cancel()

	err := page.Navigate(navCtx, s.cfg.Client.LandingURL)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("feed: navigation did not settle", "timeout", s.cfg.Timeouts.Navigation)
		return nil
	}
	return fmt.Errorf("feed: navigate: %w", err)
}

// relogin discards the stored profile and runs the interactive sign-in.
func (s *Service) relogin(ctx context.Context) error {
	s.setState(StateNeedsLogin)
	if err := s.resetSession(); err != nil {
		return err
	}
	s.setState(StateLoggingIn)
	return s.login(ctx)
}

// resetSession deletes the session directory. A missing directory is not
// an error.
func (s *Service) resetSession() error {
	dir := s.cfg.Browser.SessionDir
	s.logger.Info("feed: deleting session data", "dir", dir)
	if err := s.removeAll(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("feed: delete session data: %w", err)
	}
	s.logger.Info("feed: deleted session data", "dir", dir)
	return nil
}

// Login opens a visible browser on the session profile and waits for the
// user to sign in. The session is left uninitialized; call Initialize to
// start serving the feed.
func (s *Service) Login(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)

	s.setState(StateLoggingIn)
	s.dropSurface()

	err := s.login(ctx)
	s.mu.Lock()
	s.state = StateUninitialized
	s.lastErr = err
	s.mu.Unlock()
	return err
}

// login runs the interactive sign-in on a visible surface. The wait for
// the landing URL is bounded only by ctx and Timeouts.Login.
func (s *Service) login(ctx context.Context) (err error) {
	log := s.logger

	surf, err := s.launcher.Launch(ctx, browser.LaunchOptions{
		Headless:   false,
		ProfileDir: s.cfg.Browser.SessionDir,
	})
	if err != nil {
		return fmt.Errorf("%w: launch: %w", ErrLoginFailed, err)
	}
	defer func() {
		if cerr := surf.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close: %w", ErrLoginFailed, cerr)
		}
	}()

	page, err := surf.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("%w: new page: %w", ErrLoginFailed, err)
	}

	log.Info("feed: opening sign in page", "url", s.cfg.Client.LandingURL)
	if err := s.navigate(ctx, page); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	log.Info("feed: please sign in to Microsoft Teams in the browser window")
	waitCtx := ctx
	if s.cfg.Timeouts.Login > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeouts.Login)
		defer cancel()
	}
	if err := page.WaitURL(waitCtx, s.cfg.Client.LandingURL); err != nil {
		return fmt.Errorf("%w: waiting for landing URL: %w", ErrLoginFailed, err)
	}

	if _, err := s.waiter.Wait(ctx, page); err != nil {
		return fmt.Errorf("%w: readiness: %w", ErrLoginFailed, err)
	}

	log.Info("feed: Microsoft Teams signed in")
	return nil
}

func (s *Service) exhausted(ctx context.Context, attempt int, cause error) error {
	err := fmt.Errorf("%w after %d attempts: %w", ErrSessionUnavailable, attempt, cause)
	s.dropSurface()
	s.mu.Lock()
	s.state = StateFailed
	s.lastErr = err
	s.mu.Unlock()

	s.logger.Error("feed: giving up on session", "attempts", attempt, "error", cause)
	s.record(ctx, journal.Attempt{Attempt: attempt, Outcome: journal.OutcomeExhausted,
		Error: err.Error(), StartedAt: s.now(), EndedAt: s.now()})
	return err
}

func (s *Service) abort(err error) error {
	s.dropSurface()
	s.mu.Lock()
	s.state = StateUninitialized
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Service) backoff(failures int) time.Duration {
	d := s.cfg.Retry.Backoff
	for i := 1; i < failures && d < s.cfg.Retry.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, s.cfg.Retry.MaxBackoff)
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Service) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// dropSurface detaches and closes the session surface once no scrape is
// using it. Callers move the state off StateAuthenticated first.
func (s *Service) dropSurface() {
	s.scrapeMu.Lock()
	s.mu.Lock()
	surf := s.surface
	s.surface = nil
	s.page = nil
	s.mu.Unlock()
	s.scrapeMu.Unlock()

	if surf != nil {
		s.closeSurface(surf)
	}
}

func (s *Service) closeSurface(surf browser.Surface) {
	if err := surf.Close(); err != nil {
		s.logger.Warn("feed: close browser failed", "error", err)
	}
}

func (s *Service) record(ctx context.Context, a journal.Attempt) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(context.WithoutCancel(ctx), a); err != nil {
		s.logger.Warn("feed: journal write failed", "error", err)
	}
}

// Attempts returns the most recent journaled attempts, newest first.
func (s *Service) Attempts(ctx context.Context, limit int) ([]journal.Attempt, error) {
	if s.journal == nil {
		return []journal.Attempt{}, nil
	}
	return s.journal.Recent(ctx, limit)
}

// Close releases the browser surface. The journal is left to its owner.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.state == StateAuthenticated {
		s.state = StateUninitialized
	}
	s.mu.Unlock()
	s.dropSurface()
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
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
