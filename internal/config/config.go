package config

import "time"

// GatewayConfig is the root configuration for a gateway instance.
type GatewayConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Bus      BusConfig      `yaml:"bus"`
	Cache    CacheConfig    `yaml:"cache"`
	Hub      HubConfig      `yaml:"hub"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this gateway instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// UpstreamConfig holds exchange endpoint settings for both venues.
type UpstreamConfig struct {
	SpotRestURL    string        `yaml:"spot_rest_url"`
	FuturesRestURL string        `yaml:"futures_rest_url"`
	SpotWSURL      string        `yaml:"spot_ws_url"`
	FuturesWSURL   string        `yaml:"futures_ws_url"`
	Timeout        time.Duration `yaml:"timeout"`     // REST request timeout
	MaxRetries     int           `yaml:"max_retries"` // REST retry attempts
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
}

// BusConfig holds pub/sub transport settings.
type BusConfig struct {
	URL           string        `yaml:"url"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
	MaxReconnects int           `yaml:"max_reconnects"` // < 0 means unlimited
}

// CacheConfig holds shared symbol-snapshot cache settings.
type CacheConfig struct {
	Bucket string        `yaml:"bucket"`
	TTL    time.Duration `yaml:"ttl"`
}

// HubConfig holds downstream client settings.
type HubConfig struct {
	DefaultWatchlist []string      `yaml:"default_watchlist"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`      // Per-client send deadline
	UnsubscribeGrace time.Duration `yaml:"unsubscribe_grace"`  // Delay before the last disconnect unsubscribes upstream
}

// ServerConfig holds the HTTP/WS listener settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
