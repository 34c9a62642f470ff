package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

const (
	DefaultServerURL        = "http://localhost:8000"
	DefaultReconnectDelay   = 2 * time.Second
	DefaultSpinDelay        = 2 * time.Second
	DefaultTickInterval     = time.Second
	DefaultRoundTimeLimit   = 60
	DefaultHTTPTimeout      = 10 * time.Second
	stateDirName            = "stop-ultra"
	maxRoundTimeLimitSecond = 600
)

// Duration is a time.Duration that decodes from "2s" or a number of seconds
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}

	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds: %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Config holds everything a client needs to reach the game server
type Config struct {
	ServerURL        string   `json:"server_url"`
	StateDir         string   `json:"state_dir"`
	ReconnectDelay   Duration `json:"reconnect_delay"`
	SpinDelay        Duration `json:"spin_delay"`
	TickInterval     Duration `json:"tick_interval"`
	DefaultTimeLimit int      `json:"default_time_limit"`
	HTTPTimeout      Duration `json:"http_timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerURL:        DefaultServerURL,
		StateDir:         defaultStateDir(),
		ReconnectDelay:   Duration(DefaultReconnectDelay),
		SpinDelay:        Duration(DefaultSpinDelay),
		TickInterval:     Duration(DefaultTickInterval),
		DefaultTimeLimit: DefaultRoundTimeLimit,
		HTTPTimeout:      Duration(DefaultHTTPTimeout),
	}
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		// Identity will not persist across runs
		return ""
	}
	return filepath.Join(dir, stateDirName)
}

// Load reads overrides from a JSON file on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("%w: server_url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: server_url must be http or https, got %q", ErrInvalidConfig, c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: server_url has no host", ErrInvalidConfig)
	}

	durations := []struct {
		name  string
		value Duration
	}{
		{"reconnect_delay", c.ReconnectDelay},
		{"spin_delay", c.SpinDelay},
		{"tick_interval", c.TickInterval},
		{"http_timeout", c.HTTPTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, d.name)
		}
	}

	if c.DefaultTimeLimit <= 0 || c.DefaultTimeLimit > maxRoundTimeLimitSecond {
		return fmt.Errorf("%w: default_time_limit out of range: %d", ErrInvalidConfig, c.DefaultTimeLimit)
	}

	return nil
}

// HTTPBaseURL is the server address without a trailing slash
func (c *Config) HTTPBaseURL() string {
	return strings.TrimRight(c.ServerURL, "/")
}

// WebSocketURL derives the realtime endpoint for a room and client,
// switching http to ws and https to wss
func (c *Config) WebSocketURL(roomID, clientID string) string {
	base := c.HTTPBaseURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return fmt.Sprintf("%s/ws/%s/%s", base, url.PathEscape(roomID), url.PathEscape(clientID))
}
