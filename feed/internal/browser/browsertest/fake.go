// Package browsertest provides in-memory fakes of the browser contracts.
// Waits never sleep: a missing element or request fails at once with
// browser.ErrTimeout, and the requested timeout is recorded.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/teamsfeed/feed/internal/browser"
)

// Launcher is a scripted browser.Launcher.
type Launcher struct {
	// OnLaunch returns the page served by the n-th launch (0-based).
	OnLaunch func(n int, opts browser.LaunchOptions) (*Page, error)

	mu       sync.Mutex
	launches []browser.LaunchOptions
	surfaces []*Surface
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	n := len(l.launches)
	l.launches = append(l.launches, opts)
	l.mu.Unlock()

	page := NewPage()
	if l.OnLaunch != nil {
		p, err := l.OnLaunch(n, opts)
		if err != nil {
			return nil, err
		}
		page = p
	}

	s := &Surface{Opts: opts, page: page}
	l.mu.Lock()
	l.surfaces = append(l.surfaces, s)
	l.mu.Unlock()
	return s, nil
}

// Launches returns the options of every Launch call so far.
func (l *Launcher) Launches() []browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.LaunchOptions(nil), l.launches...)
}

// Surfaces returns every surface launched so far.
func (l *Launcher) Surfaces() []*Surface {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Surface(nil), l.surfaces...)
}

// Surface serves a single Page.
type Surface struct {
	Opts browser.LaunchOptions

	mu     sync.Mutex
	page   *Page
	closed bool
}

func (s *Surface) NewPage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("browsertest: surface closed")
	}
	return s.page, nil
}

func (s *Surface) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Page is a scripted browser.Page.
type Page struct {
	// LandsOn is the location after Navigate. Empty keeps the target URL.
	LandsOn string
	// NavigateErr fails Navigate.
	NavigateErr error
	// WaitURLErr fails WaitURL. When nil, WaitURL succeeds at once and
	// moves the location to the awaited URL, as if the user signed in.
	WaitURLErr error
	// BlockWaitURL makes WaitURL wait for context cancellation.
	BlockWaitURL bool
	// HeapBytes is reported by HeapUsage.
	HeapBytes int64

	mu          sync.Mutex
	url         string
	elements    map[string]*Element
	requests    []string
	navigations []string
	lookups     map[string][]time.Duration
	closed      bool
}

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{
		url:      "about:blank",
		elements: make(map[string]*Element),
		lookups:  make(map[string][]time.Duration),
	}
}

// SetElement makes selector resolve to el.
func (p *Page) SetElement(selector string, el *Element) {
	p.mu.Lock()
	p.elements[selector] = el
	p.mu.Unlock()
}

// RemoveElement makes selector unresolvable.
func (p *Page) RemoveElement(selector string) {
	p.mu.Lock()
	delete(p.elements, selector)
	p.mu.Unlock()
}

// AddRequest records an outgoing request URL.
func (p *Page) AddRequest(u string) {
	p.mu.Lock()
	p.requests = append(p.requests, u)
	p.mu.Unlock()
}

// SetURL moves the current location.
func (p *Page) SetURL(u string) {
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

// Navigations returns every URL passed to Navigate.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// Lookups returns the timeouts of every Element call for selector.
func (p *Page) Lookups(selector string) []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.lookups[selector]...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	p.url = url
	if p.LandsOn != "" {
		p.url = p.LandsOn
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) WaitURL(ctx context.Context, substr string) error {
	if p.BlockWaitURL {
		<-ctx.Done()
		return ctx.Err()
	}
	if p.WaitURLErr != nil {
		return p.WaitURLErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !strings.Contains(p.url, substr) {
		p.url = substr
	}
	return nil
}

func (p *Page) Element(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups[selector] = append(p.lookups[selector], timeout)
	el, ok := p.elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: element %s", browser.ErrTimeout, selector)
	}
	return el, nil
}

func (p *Page) WaitRequest(ctx context.Context, prefix string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.requests {
		if strings.HasPrefix(u, prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: request %s", browser.ErrTimeout, prefix)
}

func (p *Page) HeapUsage(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HeapBytes, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Element is a scripted browser.Element.
type Element struct {
	// Content is returned by Text.
	Content string
	TextErr error
	// Children maps a selector to the elements Elements returns for it.
	Children    map[string][]*Element
	ChildrenErr error
	// Marks lists the selectors Has reports as present.
	Marks  map[string]bool
	HasErr error
	// OnClick runs on every successful Click.
	OnClick  func()
	ClickErr error

	mu     sync.Mutex
	clicks int
}

// Clicks returns how many times Click succeeded.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) Elements(ctx context.Context, selector string) ([]browser.Element, error) {
	if e.ChildrenErr != nil {
		return nil, e.ChildrenErr
	}
	kids := e.Children[selector]
	out := make([]browser.Element, 0, len(kids))
	for _, k := range kids {
		out = append(out, k)
	}
	return out, nil
}

func (e *Element) Has(ctx context.Context, selector string) (bool, error) {
	if e.HasErr != nil {
		return false, e.HasErr
	}
	return e.Marks[selector], nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if e.TextErr != nil {
		return "", e.TextErr
	}
	return e.Content, nil
}

func (e *Element) Click(ctx context.Context) error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.mu.Lock()
	e.clicks++
	e.mu.Unlock()
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}
