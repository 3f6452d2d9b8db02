// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Upstream WebSocket frame rates and reconnects per venue
//   - Bus publish volume per subject and relay decode drops
//   - Connected client counts, broadcasts, and evictions
//   - Symbol registry refresh outcomes
//
// All collectors register on the default registry and are served by the
// gateway's /metrics endpoint.
package metrics
