// Package binance wraps the exchange REST API for both venues.
//
// One Client carries a spot and a USD-M futures client and exposes:
//   - Symbol universes filtered to TRADING status
//   - Historical klines normalized to whole-second buckets and float fields
//   - 24h ticker statistics, batched per venue
//
// Idempotent GETs retry on transient failures with jittered exponential
// backoff. Exchange-reported errors surface as the upstream client's typed
// API error; callers treat any failure as "keep the previous snapshot".
package binance
