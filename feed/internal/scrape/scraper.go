// CLAUDE:SUMMARY Extracts conversation threads from the Teams chat list and maps them to feed items under an inclusion filter.
// Package scrape reads the conversation list of a ready Teams page.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/teamsfeed/feed/internal/browser"
	"github.com/hazyhaar/teamsfeed/feed/item"
)

// Entry is one conversation row as rendered in the chat list.
type Entry struct {
	DisplayName     string
	HasUnreadMarker bool
}

// Filter decides which entries become feed items.
type Filter string

const (
	// FilterAll includes every entry.
	FilterAll Filter = "all"
	// FilterRead includes entries without the unread marker.
	FilterRead Filter = "read"
	// FilterUnread includes entries carrying the unread marker.
	FilterUnread Filter = "unread"
)

// ParseFilter validates a filter name. Empty means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterRead, FilterUnread:
		return f, nil
	}
	return "", fmt.Errorf("scrape: unknown filter %q", s)
}

// Include reports whether e passes the filter.
func (f Filter) Include(e Entry) bool {
	switch f {
	case FilterRead:
		return !e.HasUnreadMarker
	case FilterUnread:
		return e.HasUnreadMarker
	}
	return true
}

// Config configures a Scraper.
type Config struct {
	ChatList string // chat list container
	Thread   string // one conversation row
	Unread   string // unread indicator inside a row
	Icon     string // icon path put on every item

	// Timeout bounds the chat list wait. Default 30s.
	Timeout time.Duration
	Filter  Filter
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Filter == "" {
		c.Filter = FilterAll
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scraper extracts feed items from a page. It holds no page state.
type Scraper struct {
	cfg Config
}

// New creates a Scraper.
func New(cfg Config) *Scraper {
	cfg.defaults()
	return &Scraper{cfg: cfg}
}

// Entries returns the chat list rows in DOM order.
func (s *Scraper) Entries(ctx context.Context, page browser.Page) ([]Entry, error) {
	list, err := page.Element(ctx, s.cfg.ChatList, s.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("scrape: chat list: %w", err)
	}

	rows, err := list.Elements(ctx, s.cfg.Thread)
	if err != nil {
		return nil, fmt.Errorf("scrape: threads: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		unread, err := row.Has(ctx, s.cfg.Unread)
		if err != nil {
			return nil, fmt.Errorf("scrape: thread %d unread marker: %w", i, err)
		}
		text, err := row.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("scrape: thread %d text: %w", i, err)
		}
		entries = append(entries, Entry{
			DisplayName:     firstLine(text),
			HasUnreadMarker: unread,
		})
	}
	return entries, nil
}

// Scrape returns the feed for page. An empty chat list yields an empty
// feed, not an error.
func (s *Scraper) Scrape(ctx context.Context, page browser.Page) (item.Feed, error) {
	entries, err := s.Entries(ctx, page)
	if err != nil {
		return item.Feed{}, err
	}

	feed := item.Empty()
	for _, e := range entries {
		if !s.cfg.Filter.Include(e) {
			continue
		}
		feed.Data = append(feed.Data, item.Item{Message: e.DisplayName, Icon: s.cfg.Icon})
	}

	s.cfg.Logger.Debug("scrape: threads read",
		"threads", len(entries), "included", feed.Len(), "filter", s.cfg.Filter)
	return feed, nil
}

// firstLine returns the rendered text before the first line break.
func firstLine(text string) string {
	name, _, _ := strings.Cut(text, "\n")
	return strings.TrimRight(name, "\r")
}
