// Package hub implements the Client Hub component.
//
// The Client Hub:
//   - Tracks kline clients indexed by (symbol, interval) pair
//   - Tracks ticker clients and their declared symbol sets
//   - Ref-counts per-stream interest and announces 0->1 transitions on
//     the bus; 1->0 transitions unsubscribe the local upstream session
//   - Broadcasts kline and ticker updates to matching clients
//   - Evicts a client on its first failed send, never retries
//   - Maintains the global ticker watchlist (defaults plus every
//     connected client's declared set)
//
// One mutex guards the indices, the ref-counter, and the pending
// unsubscribe set. It is never held across a socket write or a bus
// publish.
package hub
