// Package bus implements the cross-process pub/sub transport.
//
// The bus carries four JSON subjects between gateway instances:
//   - market.kline           normalized kline updates
//   - market.ticker          filtered ticker batches
//   - market.cmd.kline.sub   stream subscription commands
//   - market.cmd.ticker.sub  watchlist extension commands
//
// Delivery is at-most-once with no retention: a message missed while a
// subscriber is disconnected is lost, and live upstream ticks repopulate
// state within one candle interval.
//
// The same connection hosts a JetStream key/value bucket that caches the
// symbol-universe snapshot across instances with a shared TTL.
package bus
