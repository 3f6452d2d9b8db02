// Package upstream implements the Upstream Multiplexer component.
//
// The multiplexer runs two independent venue sessions (spot and
// derivatives). Each session:
//   - Dials the combined-streams endpoint with its current stream set;
//     the ticker firehose is always included
//   - Decodes frames, normalizes klines and tickers, and publishes them
//     to the bus
//   - Filters the ticker firehose by the global watchlist
//   - Accepts live SUBSCRIBE/UNSUBSCRIBE commands on the open socket
//   - Pings every 20s and treats 20s of silence as a dead socket
//   - Reconnects 5s after any failure; the dial URL re-announces every
//     stream the session still holds
//
// Dynamic subscribes route by symbol classification: DERIV streams go to
// the derivatives session, everything else (including unknown symbols)
// to spot. Command acks from the venue are ignored.
package upstream
