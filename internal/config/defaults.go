package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultSpotRestURL      = "https://api.binance.com/api/v3"
	DefaultFuturesRestURL   = "https://fapi.binance.com/fapi/v1"
	DefaultSpotWSURL        = "wss://stream.binance.com:9443"
	DefaultFuturesWSURL     = "wss://fstream.binance.com"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultReconnectDelay   = 5 * time.Second
	DefaultPingInterval     = 20 * time.Second
	DefaultPingTimeout      = 20 * time.Second
	DefaultBusURL           = "nats://localhost:4222"
	DefaultReconnectWait    = 2 * time.Second
	DefaultMaxReconnects    = -1 // unlimited
	DefaultCacheBucket      = "binance"
	DefaultCacheTTL         = time.Hour
	DefaultWriteTimeout     = 2 * time.Second
	DefaultUnsubscribeGrace = time.Second
	DefaultServerAddr       = ":8000"
	DefaultLogLevel         = "info"
)

// DefaultWatchlist holds the anchor symbols that stay on the ticker filter
// even with zero connected clients.
var DefaultWatchlist = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

// Default returns a configuration populated entirely from defaults.
func Default() *GatewayConfig {
	cfg := &GatewayConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *GatewayConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = "gateway-local"
	}

	// Upstream defaults. Endpoint fields honor the environment so the
	// gateway runs against mirrors with no config file on disk.
	if c.Upstream.SpotRestURL == "" {
		c.Upstream.SpotRestURL = envOr("BINANCE_API_URL", DefaultSpotRestURL)
	}
	if c.Upstream.FuturesRestURL == "" {
		c.Upstream.FuturesRestURL = envOr("BINANCE_FUTURES_API_URL", DefaultFuturesRestURL)
	}
	if c.Upstream.SpotWSURL == "" {
		c.Upstream.SpotWSURL = envOr("BINANCE_WS_URL", DefaultSpotWSURL)
	}
	if c.Upstream.FuturesWSURL == "" {
		c.Upstream.FuturesWSURL = envOr("BINANCE_FUTURES_WS_URL", DefaultFuturesWSURL)
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultAPITimeout
	}
	if c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = DefaultMaxRetries
	}
	if c.Upstream.ReconnectDelay == 0 {
		c.Upstream.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Upstream.PingInterval == 0 {
		c.Upstream.PingInterval = DefaultPingInterval
	}
	if c.Upstream.PingTimeout == 0 {
		c.Upstream.PingTimeout = DefaultPingTimeout
	}

	// Bus defaults
	if c.Bus.URL == "" {
		c.Bus.URL = envOr("NATS_URL", DefaultBusURL)
	}
	if c.Bus.ReconnectWait == 0 {
		c.Bus.ReconnectWait = DefaultReconnectWait
	}
	if c.Bus.MaxReconnects == 0 {
		c.Bus.MaxReconnects = DefaultMaxReconnects
	}

	// Cache defaults
	if c.Cache.Bucket == "" {
		c.Cache.Bucket = DefaultCacheBucket
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	// Hub defaults
	if len(c.Hub.DefaultWatchlist) == 0 {
		c.Hub.DefaultWatchlist = append([]string(nil), DefaultWatchlist...)
	}
	if c.Hub.WriteTimeout == 0 {
		c.Hub.WriteTimeout = DefaultWriteTimeout
	}
	if c.Hub.UnsubscribeGrace == 0 {
		c.Hub.UnsubscribeGrace = DefaultUnsubscribeGrace
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

// envOr returns the environment value for key, or fallback when unset or
// empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
