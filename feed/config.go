package feed

import (
	"github.com/hazyhaar/teamsfeed/feed/internal/config"
)

// Config is the top-level teamsfeed configuration. Re-exported from internal.
type Config = config.Config

// ClientConfig locates the Teams web client.
type ClientConfig = config.ClientConfig

// SelectorConfig holds the CSS selectors.
type SelectorConfig = config.SelectorConfig

// BrowserConfig controls Chrome.
type BrowserConfig = config.BrowserConfig

// TimeoutConfig bounds each wait.
type TimeoutConfig = config.TimeoutConfig

// RetryConfig bounds session establishment.
type RetryConfig = config.RetryConfig

// SinkConfig defines a feed output.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return config.Default()
}
