// CLAUDE:SUMMARY go-rod launcher: starts Chrome headless or visible on a persistent profile, with stealth pages and optional Xvfb.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// RodConfig configures the go-rod launcher.
type RodConfig struct {
	// Bin is the Chrome binary. Empty lets rod find or download one.
	Bin string

	// ResourceBlocking lists resource types to block on pages launched
	// with BlockResources (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// XvfbDisplay, when set, starts Xvfb on that display for visible
	// surfaces. Use on hosts without a desktop session.
	XvfbDisplay string

	Logger *slog.Logger
}

func (c *RodConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Rod launches Chrome through go-rod. It is stateless: every Launch
// returns an independent Surface.
type Rod struct {
	cfg RodConfig
}

// NewRod creates the go-rod Launcher.
func NewRod(cfg RodConfig) *Rod {
	cfg.defaults()
	return &Rod{cfg: cfg}
}

// Launch starts Chrome according to opts and connects to it.
func (r *Rod) Launch(ctx context.Context, opts LaunchOptions) (Surface, error) {
	log := r.cfg.Logger
	s := &rodSurface{cfg: r.cfg, opts: opts}

	l := launcher.New().Headless(opts.Headless)
	if r.cfg.Bin != "" {
		l = l.Bin(r.cfg.Bin)
	}
	if opts.ProfileDir != "" {
		dir, err := filepath.Abs(opts.ProfileDir)
		if err != nil {
			return nil, fmt.Errorf("browser: profile dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("browser: profile dir: %w", err)
		}
		l = l.UserDataDir(dir)
	}

	if !opts.Headless && r.cfg.XvfbDisplay != "" {
		if err := s.startXvfb(); err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
		l = l.Env(append(os.Environ(), "DISPLAY="+r.cfg.XvfbDisplay)...)
	}

	// Anti-detection flags.
	l = l.Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		s.stopXvfb()
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	s.lnch = l

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		s.lnch.Kill()
		s.stopXvfb()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	if ctx.Err() != nil {
		s.Close()
		return nil, ctx.Err()
	}

	log.Info("browser: launched chrome",
		"headless", opts.Headless, "profile", opts.ProfileDir)
	return s, nil
}

type rodSurface struct {
	cfg  RodConfig
	opts LaunchOptions

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	pages   []*rodPage
	closed  bool
}

// NewPage opens a stealth tab with request tracking enabled.
func (s *rodSurface) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("browser: surface is closed")
	}

	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if s.opts.BlockResources && len(s.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, s.cfg.ResourceBlocking); err != nil {
			s.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	p, err := newRodPage(page, s.cfg.Logger)
	if err != nil {
		page.Close()
		return nil, err
	}
	s.pages = append(s.pages, p)
	return p, nil
}

// Close shuts Chrome down. A throwaway profile is removed; a persistent
// one is left on disk once Chrome has exited, so cookies written during
// sign-in are flushed before the directory is reused or removed.
func (s *rodSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for _, p := range s.pages {
		p.stop()
	}
	s.pages = nil

	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		if s.opts.ProfileDir == "" {
			s.lnch.Cleanup()
		} else if pid := s.lnch.PID(); !waitExit(pid, exitTimeout, exitPoll) {
			s.cfg.Logger.Warn("browser: chrome still running after close, killing", "pid", pid)
			s.lnch.Kill()
		}
		s.lnch = nil
	}
	s.stopXvfb()

	if err != nil {
		return fmt.Errorf("browser: close: %w", err)
	}
	return nil
}
