// Package model defines shared data types used across the market gateway.
//
// Conventions:
//   - Symbols: uppercase ("BTCUSDT") everywhere except stream names and
//     kline broadcast payloads, which use lowercase per the exchange format
//   - Times: int64 whole seconds since Unix epoch (upstream milliseconds
//     are truncated at the decode boundary)
//   - Prices and volumes: float64, parsed from the exchange's string fields
package model
