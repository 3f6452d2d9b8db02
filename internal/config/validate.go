package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	for name, url := range map[string]string{
		"upstream.spot_rest_url":    c.Upstream.SpotRestURL,
		"upstream.futures_rest_url": c.Upstream.FuturesRestURL,
	} {
		if url == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	for name, url := range map[string]string{
		"upstream.spot_ws_url":    c.Upstream.SpotWSURL,
		"upstream.futures_ws_url": c.Upstream.FuturesWSURL,
	} {
		if url == "" {
			return fmt.Errorf("%s is required", name)
		}
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			return fmt.Errorf("%s must be a ws:// or wss:// URL, got %q", name, url)
		}
	}

	if c.Upstream.MaxRetries < 0 {
		return errors.New("upstream.max_retries must be >= 0")
	}
	if c.Upstream.ReconnectDelay <= 0 {
		return errors.New("upstream.reconnect_delay must be > 0")
	}
	if c.Upstream.PingInterval <= 0 {
		return errors.New("upstream.ping_interval must be > 0")
	}
	if c.Upstream.PingTimeout <= 0 {
		return errors.New("upstream.ping_timeout must be > 0")
	}

	if c.Bus.URL == "" {
		return errors.New("bus.url is required")
	}

	if c.Cache.Bucket == "" {
		return errors.New("cache.bucket is required")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0")
	}

	if len(c.Hub.DefaultWatchlist) == 0 {
		return errors.New("hub.default_watchlist must not be empty")
	}
	if c.Hub.WriteTimeout <= 0 {
		return errors.New("hub.write_timeout must be > 0")
	}
	if c.Hub.UnsubscribeGrace < 0 {
		return errors.New("hub.unsubscribe_grace must be >= 0")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}

	return nil
}
