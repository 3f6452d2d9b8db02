package bus

import "github.com/viewingchart/market-gateway/internal/model"

// Subjects carried on the bus. The dispatcher selects a decoder by subject
// name; payload shapes are never probed.
const (
	SubjectKline     = "market.kline"
	SubjectTicker    = "market.ticker"
	SubjectKlineSub  = "market.cmd.kline.sub"
	SubjectTickerSub = "market.cmd.ticker.sub"
)

// KlineMessage is the market.kline payload.
type KlineMessage struct {
	Symbol   string            `json:"symbol"` // lowercase
	Interval string            `json:"interval"`
	Data     model.KlineUpdate `json:"data"`
}

// TickerMessage is the market.ticker payload: one batch per upstream frame.
type TickerMessage = model.TickerBatch

// SubscribeCommand is the market.cmd.kline.sub payload, announcing first
// local interest in a stream.
type SubscribeCommand struct {
	Stream string `json:"stream"`
}

// TickerSubscribeCommand is the market.cmd.ticker.sub payload, extending the
// global watchlist with a client's newly declared symbols.
type TickerSubscribeCommand struct {
	Symbols []string `json:"symbols"`
}
