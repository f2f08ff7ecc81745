package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// maxSeenRequests caps the per-navigation request log.
const maxSeenRequests = 1024

// urlPollInterval is how often WaitURL re-reads the location.
const urlPollInterval = 500 * time.Millisecond

// rodPage implements Page on a rod tab. A background listener records
// outgoing request URLs so WaitRequest also sees requests sent before it
// was called.
type rodPage struct {
	page   *rod.Page
	logger *slog.Logger
	cancel context.CancelFunc

	mu     sync.Mutex
	seen   []string
	notify chan struct{}
}

func newRodPage(page *rod.Page, logger *slog.Logger) (*rodPage, error) {
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("browser: enable network: %w", err)
	}

	evCtx, cancel := context.WithCancel(context.Background())
	p := &rodPage{
		page:   page,
		logger: logger,
		cancel: cancel,
		notify: make(chan struct{}),
	}

	wait := page.Context(evCtx).EachEvent(func(e *proto.NetworkRequestWillBeSent) {
		p.observe(e.Request.URL)
	})
	go wait()

	return p, nil
}

func (p *rodPage) observe(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, u)
	if len(p.seen) > maxSeenRequests {
		p.seen = p.seen[len(p.seen)-maxSeenRequests:]
	}
	close(p.notify)
	p.notify = make(chan struct{})
}

func (p *rodPage) resetRequests() {
	p.mu.Lock()
	p.seen = nil
	p.mu.Unlock()
}

// matchRequest reports whether a recorded request matches prefix, and
// returns the channel closed on the next recorded request.
func (p *rodPage) matchRequest(prefix string) (bool, <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.seen {
		if strings.HasPrefix(u, prefix) {
			return true, nil
		}
	}
	return false, p.notify
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)

	// Armed before navigating so the lifecycle event cannot be missed.
	idle := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)

	p.resetRequests()
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	idle()

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return ctx.Err()
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: location: %w", err)
	}
	return res.Value.Str(), nil
}

func (p *rodPage) WaitURL(ctx context.Context, substr string) error {
	ticker := time.NewTicker(urlPollInterval)
	defer ticker.Stop()

	for {
		u, err := p.URL(ctx)
		if err == nil && strings.Contains(u, substr) {
			return nil
		}
		// Evaluation fails while a cross-origin redirect swaps the
		// execution context; keep polling.
		if err != nil {
			p.logger.Debug("browser: location poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *rodPage) Element(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := p.page.Context(tctx).Element(selector)
	if err != nil {
		return nil, timeoutErr(ctx, fmt.Errorf("browser: element %s: %w", selector, err))
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) WaitRequest(ctx context.Context, prefix string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		ok, next := p.matchRequest(prefix)
		if ok {
			return nil
		}
		select {
		case <-next:
		case <-tctx.Done():
			return timeoutErr(ctx, fmt.Errorf("browser: request %s: %w", prefix, tctx.Err()))
		}
	}
}

// HeapUsage queries the page's JS heap via performance.memory.
func (p *rodPage) HeapUsage(ctx context.Context) (int64, error) {
	res, err := p.page.Context(ctx).Eval(`() => {
		if (performance.memory) {
			return performance.memory.usedJSHeapSize;
		}
		return 0;
	}`)
	if err != nil {
		return 0, fmt.Errorf("browser: heap usage: %w", err)
	}
	return int64(res.Value.Int()), nil
}

func (p *rodPage) stop() {
	p.cancel()
}

func (p *rodPage) Close() error {
	p.stop()
	return p.page.Close()
}

// rodElement implements Element. Each call rebinds the element to the
// caller's context, dropping the lookup deadline it was found under.
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: elements %s: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (e *rodElement) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := e.el.Context(ctx).Has(selector)
	if err != nil {
		return false, fmt.Errorf("browser: has %s: %w", selector, err)
	}
	return has, nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	s, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("browser: text: %w", err)
	}
	return s, nil
}

func (e *rodElement) Click(ctx context.Context) error {
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}
