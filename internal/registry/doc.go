// Package registry implements the Symbol Registry component.
//
// The Symbol Registry:
//   - Fetches the spot and derivatives symbol universes over REST
//   - Partitions them into two disjoint venue sets (derivatives-only)
//   - Classifies any symbol as SPOT, DERIV, or UNKNOWN for routing
//   - Serves search and popular queries from an immutable snapshot
//   - Replaces the whole snapshot atomically once per TTL
//
// Snapshots are shared across gateway instances through a key/value
// bucket whose TTL matches the cache lifetime, so a restarting instance
// can warm-start without hitting the exchange.
package registry
