package model

// Venue identifies which upstream endpoint carries a symbol.
type Venue string

const (
	// VenueSpot is the spot exchange.
	VenueSpot Venue = "SPOT"

	// VenueDeriv is the derivatives (USD-M futures) exchange.
	VenueDeriv Venue = "DERIV"

	// VenueUnknown means the symbol is in neither universe snapshot.
	VenueUnknown Venue = "UNKNOWN"
)

// Source strings carried on symbol JSON, matching the upstream display names.
const (
	SourceSpot  = "Binance"
	SourceDeriv = "Binance Futures"
)

// Symbol is one tradable pair from the exchange universe.
type Symbol struct {
	Symbol     string `json:"symbol"`     // Uppercase pair name (e.g., "BTCUSDT")
	BaseAsset  string `json:"baseAsset"`  // e.g., "BTC"
	QuoteAsset string `json:"quoteAsset"` // e.g., "USDT"
	Source     string `json:"source"`     // SourceSpot or SourceDeriv
}

// KlineUpdate is one normalized candlestick bucket update.
//
// Updates are idempotent per (symbol, interval, Time): a later update for the
// same bucket supersedes earlier ones and downstream consumers replace
// in place.
type KlineUpdate struct {
	Time   int64   `json:"time"` // Bucket open time, whole seconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// TickerEntry is the 24h price summary for one symbol.
type TickerEntry struct {
	LastPrice          float64 `json:"lastPrice"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
}

// TickerBatch maps uppercase symbols to their latest ticker entries.
// One batch is dispatched per upstream firehose frame.
type TickerBatch map[string]TickerEntry

// SymbolVolume pairs a symbol with its 24h quote volume, used to rank the
// popular list.
type SymbolVolume struct {
	Symbol      string
	QuoteVolume float64
}
