package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"warelay/internal/constants"
)

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

var (
	ErrMissingHostname     = ConfigError{Message: "missing server hostname"}
	ErrMissingDBPath       = ConfigError{Message: "missing database path"}
	ErrMissingClientID     = ConfigError{Message: "missing gateway OAuth client id"}
	ErrMissingClientSecret = ConfigError{Message: "missing gateway OAuth client secret"}
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Gateway  GatewayConfig  `json:"gateway"`
	Database DatabaseConfig `json:"database"`
	Refresh  RefreshConfig  `json:"refresh"`
	Prober   ProberConfig   `json:"prober"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// ServerConfig holds the webhook ingress server configuration. Hostname
// is the public name the gateway reaches us on; it is baked into webhook
// callback URLs and user-agent strings.
type ServerConfig struct {
	Port            int    `json:"port"`
	Hostname        string `json:"hostname"`
	ReadTimeoutSec  int    `json:"read_timeout_sec"`
	WriteTimeoutSec int    `json:"write_timeout_sec"`
}

// GatewayConfig holds Wassup gateway related configuration.
type GatewayConfig struct {
	AuthBaseURL  string `json:"auth_base_url"`
	APIBaseURL   string `json:"api_base_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TimeoutSec   int    `json:"timeout_sec"`
}

// DatabaseConfig holds database related configuration.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// RefreshConfig drives the OAuth token refresh scheduler.
type RefreshConfig struct {
	PollIntervalSec int `json:"poll_interval_sec"`
	LookaheadSec    int `json:"lookahead_sec"`
}

// ProberConfig drives the whatsappable contact prober.
type ProberConfig struct {
	IntervalSec   int `json:"interval_sec"`
	SampleSize    int `json:"sample_size"`
	StalenessDays int `json:"staleness_days"`
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	UseStdout    bool    `json:"use_stdout"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate"`
	Environment  string  `json:"environment"`
}

func LoadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *Config) error {
	if c.Server.Hostname == "" {
		return ErrMissingHostname
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Gateway.ClientID == "" {
		return ErrMissingClientID
	}
	if c.Gateway.ClientSecret == "" {
		return ErrMissingClientSecret
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultWriteTimeoutSec
	}
	if c.Gateway.AuthBaseURL == "" {
		c.Gateway.AuthBaseURL = constants.DefaultAuthBaseURL
	}
	if c.Gateway.APIBaseURL == "" {
		c.Gateway.APIBaseURL = constants.DefaultAPIBaseURL
	}
	if c.Gateway.TimeoutSec <= 0 {
		c.Gateway.TimeoutSec = constants.DefaultGatewayTimeoutSec
	}
	if c.Refresh.PollIntervalSec <= 0 {
		c.Refresh.PollIntervalSec = constants.DefaultRefreshPollSec
	}
	if c.Refresh.LookaheadSec <= 0 {
		c.Refresh.LookaheadSec = constants.DefaultRefreshLookaheadSec
	}
	if c.Prober.IntervalSec <= 0 {
		c.Prober.IntervalSec = constants.DefaultProberIntervalSec
	}
	if c.Prober.SampleSize <= 0 {
		c.Prober.SampleSize = constants.DefaultProberSampleSize
	}
	if c.Prober.StalenessDays <= 0 {
		c.Prober.StalenessDays = constants.DefaultProberStalenessDays
	}
}

func applyEnvironmentOverrides(c *Config) {
	if url := os.Getenv("WASSUP_AUTH_URL"); url != "" {
		c.Gateway.AuthBaseURL = url
	}
	if url := os.Getenv("WASSUP_API_URL"); url != "" {
		c.Gateway.APIBaseURL = url
	}
	if id := os.Getenv("WASSUP_AUTH_CLIENT_ID"); id != "" {
		c.Gateway.ClientID = id
	}
	if secret := os.Getenv("WASSUP_AUTH_CLIENT_SECRET"); secret != "" {
		c.Gateway.ClientSecret = secret
	}
	if hostname := os.Getenv("WARELAY_HOSTNAME"); hostname != "" {
		c.Server.Hostname = hostname
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

// Addr returns the listen address for the ingress server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
