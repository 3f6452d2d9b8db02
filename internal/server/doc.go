// Package server is the HTTP/WS edge of the gateway.
//
// It exposes two WebSocket endpoints (per-stream klines, shared tickers)
// that register clients with the hub, a small market REST surface backed by
// the registry and the exchange REST adapter, and health plus Prometheus
// metrics endpoints. Handlers validate, upgrade, and delegate; all market
// data flows through the hub.
package server
