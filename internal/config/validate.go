package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *MonitorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}
	if c.Instance.UserID < 1 {
		return errors.New("instance.user_id is required")
	}

	if c.Realtime.WSURL == "" {
		return errors.New("realtime.ws_url is required")
	}
	if !strings.HasPrefix(c.Realtime.WSURL, "ws://") && !strings.HasPrefix(c.Realtime.WSURL, "wss://") {
		return fmt.Errorf("realtime.ws_url must be a ws:// or wss:// URL, got %q", c.Realtime.WSURL)
	}
	if c.Realtime.TokenEnv == "" && c.Realtime.TokenFile == "" {
		return errors.New("one of realtime.token_env or realtime.token_file is required")
	}
	if c.Realtime.ReconnectFactor <= 1 {
		return fmt.Errorf("realtime.reconnect_factor must be > 1, got %v", c.Realtime.ReconnectFactor)
	}
	if c.Realtime.MaxReconnectAttempts < 0 {
		return errors.New("realtime.max_reconnect_attempts must be >= 0")
	}
	if c.Realtime.ReconnectBaseDelay > c.Realtime.ReconnectMaxDelay {
		return fmt.Errorf("realtime.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
			c.Realtime.ReconnectBaseDelay, c.Realtime.ReconnectMaxDelay)
	}
	if c.Realtime.BufferSize < 1 {
		return errors.New("realtime.buffer_size must be >= 1")
	}

	if c.Poller.Enabled && c.API.RestURL == "" {
		return errors.New("api.rest_url is required when the poller is enabled")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
