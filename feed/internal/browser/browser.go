// CLAUDE:SUMMARY Browser surface contracts (Launcher, Surface, Page, Element) consumed by the session, readiness and scrape layers.
// Package browser owns the automation surface used by teamsfeed: launching
// Chrome headless or visible on a persistent profile directory, opening
// pages, waiting for elements and network requests.
//
// The session, readiness and scrape layers only see the interfaces below.
// NewRod returns the go-rod implementation; browsertest provides fakes.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout reports that a bounded wait expired before its condition held.
// The parent context is still alive when ErrTimeout is returned.
var ErrTimeout = errors.New("browser: timeout")

// LaunchOptions selects how a surface is started.
type LaunchOptions struct {
	// Headless false opens a visible window (interactive sign-in).
	Headless bool
	// ProfileDir is the persistent user-data directory. Empty uses a
	// throwaway directory removed on Close.
	ProfileDir string
	// BlockResources enables the configured resource blocking on pages.
	BlockResources bool
}

// Launcher starts browser surfaces.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Surface, error)
}

// Surface is one running browser process.
type Surface interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab.
type Page interface {
	// Navigate loads url and waits for the load event and network
	// settling.
	Navigate(ctx context.Context, url string) error
	// URL returns the current window location, fragment included.
	URL(ctx context.Context) (string, error)
	// WaitURL blocks until the location contains substr or ctx ends.
	WaitURL(ctx context.Context, substr string) error
	// Element waits up to timeout for selector. ErrTimeout when absent.
	Element(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// WaitRequest waits up to timeout for an outgoing request whose URL
	// starts with prefix, counting requests issued since the last Navigate.
	WaitRequest(ctx context.Context, prefix string, timeout time.Duration) error
	// HeapUsage returns the page's used JS heap in bytes.
	HeapUsage(ctx context.Context) (int64, error)
	Close() error
}

// Element is a DOM node handle.
type Element interface {
	Elements(ctx context.Context, selector string) ([]Element, error)
	Has(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
}

// timeoutErr converts the expiry of a child deadline into ErrTimeout while
// keeping parent cancellation visible to the caller.
func timeoutErr(parent context.Context, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
