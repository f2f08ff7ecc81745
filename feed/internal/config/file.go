// CLAUDE:SUMMARY Defines teamsfeed config structs, parses YAML files, applies defaults and validates filters and sinks.
// Package config handles teamsfeed configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level teamsfeed configuration.
type Config struct {
	Client    ClientConfig   `yaml:"client"`
	Selectors SelectorConfig `yaml:"selectors"`
	Browser   BrowserConfig  `yaml:"browser"`
	Timeouts  TimeoutConfig  `yaml:"timeouts"`
	Retry     RetryConfig    `yaml:"retry"`
	Feed      FeedConfig     `yaml:"feed"`
	Poll      PollConfig     `yaml:"poll"`
	HTTP      HTTPConfig     `yaml:"http"`
	Journal   JournalConfig  `yaml:"journal"`
	Sinks     []SinkConfig   `yaml:"sinks"`
}

// ClientConfig locates the Teams web client.
type ClientConfig struct {
	// LandingURL is only reached by an authenticated session.
	LandingURL      string `yaml:"landing_url"`
	RegistrationURL string `yaml:"registration_url"`
	IconPath        string `yaml:"icon_path"`
	Placeholder     string `yaml:"placeholder"`
}

// SelectorConfig holds the CSS selectors the client is read through.
type SelectorConfig struct {
	ReadyMarker string `yaml:"ready_marker"`
	TryAgain    string `yaml:"try_again"`
	ChatList    string `yaml:"chat_list"`
	Thread      string `yaml:"thread"`
	Unread      string `yaml:"unread"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	SessionDir       string        `yaml:"session_dir"`
	Bin              string        `yaml:"bin"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	MonitorInterval  time.Duration `yaml:"monitor_interval"`
}

// TimeoutConfig bounds each wait. Login zero means no limit.
type TimeoutConfig struct {
	Navigation   time.Duration `yaml:"navigation"`
	ReadyMarker  time.Duration `yaml:"ready_marker"`
	Registration time.Duration `yaml:"registration"`
	Quiescence   time.Duration `yaml:"quiescence"`
	TryAgain     time.Duration `yaml:"try_again"`
	ChatList     time.Duration `yaml:"chat_list"`
	Login        time.Duration `yaml:"login"`
}

// RetryConfig bounds session establishment.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	MaxTryAgain int           `yaml:"max_try_again"`
}

// FeedConfig selects which threads become items.
type FeedConfig struct {
	Filter string `yaml:"filter"` // all | read | unread
}

// PollConfig controls the sink poller.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// HTTPConfig controls the HTTP listener. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// JournalConfig locates the session attempt journal. Empty Path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// SinkConfig defines a feed output.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Feed.Filter {
	case "all", "read", "unread":
	default:
		return fmt.Errorf("config: feed.filter %q: want all, read or unread", c.Feed.Filter)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

// ApplyDefaults fills every unset or non-positive field with its default
// and normalises the feed filter.
func (c *Config) ApplyDefaults() {
	if c.Client.LandingURL == "" {
		c.Client.LandingURL = "https://teams.microsoft.com/_#/conversations/48:notes?ctx=chat"
	}
	if c.Client.RegistrationURL == "" {
		c.Client.RegistrationURL = "https://teams.microsoft.com/registrar/prod/V2/registrations"
	}
	if c.Client.IconPath == "" {
		c.Client.IconPath = "/assets/icon-teams.png"
	}
	if c.Client.Placeholder == "" {
		c.Client.Placeholder = "Microsoft Teams feed not initialized"
	}

	if c.Selectors.ReadyMarker == "" {
		c.Selectors.ReadyMarker = `[id="chat-header-title"]`
	}
	if c.Selectors.TryAgain == "" {
		c.Selectors.TryAgain = `a[id="try-again-link"]`
	}
	if c.Selectors.ChatList == "" {
		c.Selectors.ChatList = `[aria-label="Chat list"]`
	}
	if c.Selectors.Thread == "" {
		c.Selectors.Thread = `[role="treeitem"]`
	}
	if c.Selectors.Unread == "" {
		c.Selectors.Unread = ".ts-unread-channel"
	}

	if c.Browser.SessionDir == "" {
		c.Browser.SessionDir = "./teamsfeed-session"
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.MonitorInterval <= 0 {
		c.Browser.MonitorInterval = 30 * time.Second
	}

	if c.Timeouts.Navigation <= 0 {
		c.Timeouts.Navigation = 2 * time.Minute
	}
	if c.Timeouts.ReadyMarker <= 0 {
		c.Timeouts.ReadyMarker = 60 * time.Second
	}
	if c.Timeouts.Registration <= 0 {
		c.Timeouts.Registration = 60 * time.Second
	}
	if c.Timeouts.Quiescence <= 0 {
		c.Timeouts.Quiescence = 10 * time.Second
	}
	if c.Timeouts.TryAgain <= 0 {
		c.Timeouts.TryAgain = 5 * time.Second
	}
	if c.Timeouts.ChatList <= 0 {
		c.Timeouts.ChatList = 30 * time.Second
	}
	if c.Timeouts.Login < 0 {
		c.Timeouts.Login = 0
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.Backoff <= 0 {
		c.Retry.Backoff = 5 * time.Second
	}
	if c.Retry.MaxBackoff <= 0 {
		c.Retry.MaxBackoff = 2 * time.Minute
	}
	if c.Retry.MaxTryAgain <= 0 {
		c.Retry.MaxTryAgain = 3
	}

	c.Feed.Filter = strings.ToLower(strings.TrimSpace(c.Feed.Filter))
	if c.Feed.Filter == "" {
		c.Feed.Filter = "all"
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = time.Minute
	}
}
