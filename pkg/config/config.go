// Package config loads cloudbrowser settings from a YAML file, a .env file
// and CLOUDBROWSER_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
)

const (
	DefaultAPIURL          = "http://localhost:8080/v1"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultReadyTimeout    = 60 * time.Second
	DefaultCloseTimeout    = 10 * time.Second
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultMaxPollInterval = 5 * time.Second
	DefaultMinBalance      = 0.50
	DefaultMaxConcurrent   = 10

	envPrefix = "CLOUDBROWSER_"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Config holds every setting of the client
type Config struct {
	APIKey string `yaml:"api_key"`
	APIURL string `yaml:"api_url"`

	// Session defaults used when the caller does not specify them
	Region    string `yaml:"region"`
	ProfileID string `yaml:"profile_id"`
	URL       string `yaml:"url"`

	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ReadyTimeout    time.Duration `yaml:"ready_timeout"`
	CloseTimeout    time.Duration `yaml:"close_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollInterval time.Duration `yaml:"max_poll_interval"`

	// MinBalance is the balance required to start a session; negative disables the minimum.
	MinBalance    float64 `yaml:"min_balance"`
	MaxConcurrent int64   `yaml:"max_concurrent"`

	// RequestsPerSecond throttles outbound API calls; zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`

	// LedgerPath is the SQLite usage ledger; empty disables it.
	LedgerPath string `yaml:"ledger_path"`

	Logging logging.Config `yaml:"logging"`
}

// Load builds the configuration. path may be empty, in which case only the
// environment and defaults are used.
func Load(path string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		parsed, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg = parsed
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromBytes parses YAML configuration without consulting the environment
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return &cfg, nil
}

// SetDefaults fills unset fields
func (c *Config) SetDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPollInterval == 0 {
		c.MaxPollInterval = DefaultMaxPollInterval
	}
	if c.MinBalance == 0 {
		c.MinBalance = DefaultMinBalance
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.RequestsPerSecond > 0 && c.Burst == 0 {
		c.Burst = 1
	}
	if strings.HasPrefix(c.LedgerPath, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.LedgerPath = filepath.Join(home, c.LedgerPath[2:])
		}
	}
}

// applyEnv overrides fields from CLOUDBROWSER_* variables
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"API_KEY":     &c.APIKey,
		"API_URL":     &c.APIURL,
		"REGION":      &c.Region,
		"PROFILE_ID":  &c.ProfileID,
		"URL":         &c.URL,
		"LEDGER_PATH": &c.LedgerPath,
		"LOG_FORMAT":  &c.Logging.Format,
	}
	for name, field := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*field = v
		}
	}

	durations := map[string]*time.Duration{
		"REQUEST_TIMEOUT":   &c.RequestTimeout,
		"READY_TIMEOUT":     &c.ReadyTimeout,
		"CLOSE_TIMEOUT":     &c.CloseTimeout,
		"POLL_INTERVAL":     &c.PollInterval,
		"MAX_POLL_INTERVAL": &c.MaxPollInterval,
	}
	for name, field := range durations {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
		}
		*field = d
	}

	floats := map[string]*float64{
		"MIN_BALANCE":         &c.MinBalance,
		"REQUESTS_PER_SECOND": &c.RequestsPerSecond,
	}
	for name, field := range floats {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
		}
		*field = f
	}

	if v, ok := os.LookupEnv(envPrefix + "MAX_CONCURRENT"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_CONCURRENT: %w", envPrefix, err)
		}
		c.MaxConcurrent = n
	}
	if v, ok := os.LookupEnv(envPrefix + "BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sBURST: %w", envPrefix, err)
		}
		c.Burst = n
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
