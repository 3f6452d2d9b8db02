// Package config handles YAML configuration loading with environment
// variable substitution.
//
// Configuration files support ${VAR} syntax; unset variables expand to the
// empty string and fall back to package defaults. Upstream and bus endpoint
// defaults additionally honor BINANCE_API_URL, BINANCE_FUTURES_API_URL,
// BINANCE_WS_URL, BINANCE_FUTURES_WS_URL, and NATS_URL, so the gateway runs
// with no config file on disk. Every binary accepts a -config flag.
package config
