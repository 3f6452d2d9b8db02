// Package relay dispatches bus messages to local components.
//
// Every gateway instance runs one Relay. It subscribes to the four market
// subjects and routes each to its consumer: kline and ticker data to the
// client hub, kline subscribe commands to the upstream multiplexer, and
// ticker subscribe commands into the shared watchlist. Decoding is keyed by
// subject, one wire shape per subject; messages that fail to decode are
// counted and dropped without disturbing the connection.
package relay
