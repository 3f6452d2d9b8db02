package model

import "strings"

// TickerStream is the all-market ticker firehose stream name. It is part of
// every venue connection and never reference-counted.
const TickerStream = "!ticker@arr"

// KlineIntervals are the candle intervals accepted on kline streams.
var KlineIntervals = []string{
	"1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

var klineIntervalSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(KlineIntervals))
	for _, iv := range KlineIntervals {
		set[iv] = struct{}{}
	}
	return set
}()

// ValidInterval reports whether iv is a recognized kline interval.
func ValidInterval(iv string) bool {
	_, ok := klineIntervalSet[iv]
	return ok
}

// KlineStream builds the exchange stream name for a symbol/interval pair,
// e.g. ("BTCUSDT", "1m") -> "btcusdt@kline_1m".
func KlineStream(symbol, interval string) string {
	return strings.ToLower(symbol) + "@kline_" + interval
}

// StreamSymbol extracts the uppercase base symbol from a kline stream name.
// Returns "" for the ticker sentinel or anything that is not a kline stream.
func StreamSymbol(stream string) string {
	name, _, ok := strings.Cut(stream, "@kline_")
	if !ok || name == "" {
		return ""
	}
	return strings.ToUpper(name)
}

// StreamInterval extracts the interval from a kline stream name, or "".
func StreamInterval(stream string) string {
	_, interval, ok := strings.Cut(stream, "@kline_")
	if !ok {
		return ""
	}
	return interval
}
