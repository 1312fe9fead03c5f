package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api_url must be an absolute http(s) URL, got %q", c.APIURL)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"request_timeout", c.RequestTimeout},
		{"ready_timeout", c.ReadyTimeout},
		{"close_timeout", c.CloseTimeout},
		{"poll_interval", c.PollInterval},
		{"max_poll_interval", c.MaxPollInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	if c.MaxPollInterval < c.PollInterval {
		return fmt.Errorf("max_poll_interval (%s) must not be shorter than poll_interval (%s)", c.MaxPollInterval, c.PollInterval)
	}

	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// RequireAPIKey reports a missing API key. Commands that talk to the control
// plane call it; commands like regions do not need a key.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key required: set %sAPI_KEY or api_key in the config file", envPrefix)
	}
	return nil
}
