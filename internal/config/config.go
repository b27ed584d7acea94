package config

import "time"

// MonitorConfig is the root configuration for a push monitor instance.
type MonitorConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Realtime RealtimeConfig `yaml:"realtime"`
	API      APIConfig      `yaml:"api"`
	Poller   PollerConfig   `yaml:"poller"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this monitor and the account it follows.
type InstanceConfig struct {
	ID     string `yaml:"id"`
	UserID int64  `yaml:"user_id"`
}

// RealtimeConfig holds the WebSocket channel settings.
type RealtimeConfig struct {
	WSURL     string `yaml:"ws_url"`
	TokenEnv  string `yaml:"token_env"`  // env var holding the session token
	TokenFile string `yaml:"token_file"` // file holding the session token; wins over token_env

	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	ReconnectFactor      float64       `yaml:"reconnect_factor"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`

	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// APIConfig holds platform REST settings for the polling fallback.
type APIConfig struct {
	RestURL      string        `yaml:"rest_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// PollerConfig holds fallback poller settings.
type PollerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}
