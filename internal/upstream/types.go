package upstream

import (
	"encoding/json"
	"time"
)

// Config holds venue session settings shared by both sessions.
type Config struct {
	// SpotURL and FuturesURL are the venue WS bases, without the
	// /stream path (e.g. wss://stream.binance.com:9443).
	SpotURL    string
	FuturesURL string

	// ReconnectDelay is the fixed wait between a session failure and the
	// next dial attempt.
	ReconnectDelay time.Duration

	// PingInterval is how often a session pings the venue.
	PingInterval time.Duration

	// PingTimeout is the longest silence tolerated before the connection
	// is declared stale and torn down.
	PingTimeout time.Duration
}

// DefaultConfig returns the production heartbeat and reconnect settings.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay: 5 * time.Second,
		PingInterval:   20 * time.Second,
		PingTimeout:    20 * time.Second,
	}
}

// command is a live subscription change sent on an open venue socket.
// IDs are opaque monotonic integers; the venue's acks are not correlated.
type command struct {
	Method string   `json:"method"` // SUBSCRIBE or UNSUBSCRIBE
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// frame is the combined-streams envelope. Data frames carry a stream name;
// command acks carry a result (possibly null) and the command's id.
type frame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	Result json.RawMessage `json:"result"`
	ID     int64           `json:"id"`
}

// klineEvent is the kline stream payload inside the envelope.
type klineEvent struct {
	Symbol string    `json:"s"`
	Kline  klineWire `json:"k"`
}

// klineWire is the venue's candle shape: millisecond open time and string
// numerics.
type klineWire struct {
	OpenTime int64  `json:"t"`
	Interval string `json:"i"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
}

// tickerWire is one item of the !ticker@arr firehose payload.
type tickerWire struct {
	Symbol             string `json:"s"`
	LastPrice          string `json:"c"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
}
