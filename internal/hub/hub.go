package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/viewingchart/market-gateway/internal/bus"
	"github.com/viewingchart/market-gateway/internal/metrics"
	"github.com/viewingchart/market-gateway/internal/model"
)

// Conn is the client socket surface the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Publisher announces stream interest on the bus.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// Unsubscriber drops a stream from the local upstream session.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, stream string) error
}

// Config holds Client Hub configuration.
type Config struct {
	// WriteTimeout bounds each client send; a miss evicts the client.
	WriteTimeout time.Duration

	// DefaultWatchlist seeds the ticker watchlist anchors.
	DefaultWatchlist []string

	// UnsubscribeGrace delays the local upstream unsubscribe after the
	// last client leaves a stream, so an immediate reconnect cancels it.
	UnsubscribeGrace time.Duration
}

// KlineClient is one downstream kline subscription.
type KlineClient struct {
	id       string
	conn     Conn
	symbol   string // lowercase
	interval string
	closed   bool
}

// ID returns the client identifier used in logs.
func (c *KlineClient) ID() string { return c.id }

// TickerClient is one downstream ticker connection.
type TickerClient struct {
	id      string
	conn    Conn
	symbols map[string]struct{}
	closed  bool
}

// ID returns the client identifier used in logs.
func (c *TickerClient) ID() string { return c.id }

type streamKey struct {
	symbol   string
	interval string
}

// Hub owns the client indices, the ref-counter, and the watchlist. One
// mutex guards all bookkeeping; sends and publishes happen outside it.
type Hub struct {
	cfg       Config
	logger    *slog.Logger
	publisher Publisher
	watch     *Watchlist

	mu           sync.Mutex
	klines       map[streamKey][]*KlineClient
	tickers      map[string]*TickerClient
	refs         *refCounter
	pendingUnsub map[string]*time.Timer
	upstream     Unsubscriber
}

// New creates a Client Hub.
func New(cfg Config, publisher Publisher, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}

	return &Hub{
		cfg:          cfg,
		logger:       logger,
		publisher:    publisher,
		watch:        NewWatchlist(cfg.DefaultWatchlist),
		klines:       make(map[streamKey][]*KlineClient),
		tickers:      make(map[string]*TickerClient),
		refs:         newRefCounter(),
		pendingUnsub: make(map[string]*time.Timer),
	}
}

// SetUpstream binds the multiplexer used for local unsubscribes. The hub
// and multiplexer reference each other, so this is wired after construction.
func (h *Hub) SetUpstream(u Unsubscriber) {
	h.mu.Lock()
	h.upstream = u
	h.mu.Unlock()
}

// Watchlist returns the ticker watchlist. The upstream read loop consults
// it on every ticker frame.
func (h *Hub) Watchlist() *Watchlist {
	return h.watch
}

// ConnectKline registers a client for one (symbol, interval) pair. The
// first local interest in the stream is announced on the bus.
func (h *Hub) ConnectKline(conn Conn, symbol, interval string) *KlineClient {
	c := &KlineClient{
		id:       uuid.NewString(),
		conn:     conn,
		symbol:   strings.ToLower(symbol),
		interval: interval,
	}
	stream := model.KlineStream(c.symbol, c.interval)

	h.mu.Lock()
	key := streamKey{c.symbol, c.interval}
	h.klines[key] = append(h.klines[key], c)
	first := h.refs.acquire(stream)
	canceled := false
	if first {
		if timer, ok := h.pendingUnsub[stream]; ok {
			timer.Stop()
			delete(h.pendingUnsub, stream)
			canceled = true
		}
	}
	count := h.refs.count(stream)
	h.mu.Unlock()

	metrics.ClientsConnected.WithLabelValues("kline").Inc()
	h.logger.Info("kline client connected",
		"client", c.id,
		"stream", stream,
		"count", count,
	)

	// A canceled pending unsubscribe means the stream never left the local
	// session; only a genuinely new stream is announced.
	if first && !canceled {
		if err := h.publisher.PublishJSON(bus.SubjectKlineSub, bus.SubscribeCommand{Stream: stream}); err != nil {
			h.logger.Error("subscribe announce failed", "stream", stream, "err", err)
		}
	}

	return c
}

// DisconnectKline removes a client. The last local interest in the stream
// schedules an unsubscribe on the local upstream session. Reports whether
// the client was still registered.
func (h *Hub) DisconnectKline(c *KlineClient) bool {
	stream := model.KlineStream(c.symbol, c.interval)

	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return false
	}
	c.closed = true

	key := streamKey{c.symbol, c.interval}
	h.klines[key] = removeKlineClient(h.klines[key], c)
	if len(h.klines[key]) == 0 {
		delete(h.klines, key)
	}

	last, err := h.refs.release(stream)
	if last {
		h.pendingUnsub[stream] = time.AfterFunc(h.cfg.UnsubscribeGrace, func() {
			h.unsubscribeIfIdle(stream)
		})
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("refcount underflow", "stream", stream, "err", err)
	}

	metrics.ClientsConnected.WithLabelValues("kline").Dec()
	h.logger.Info("kline client disconnected", "client", c.id, "stream", stream)
	return true
}

// unsubscribeIfIdle drops the stream from the local upstream session unless
// a new client acquired it while the grace timer ran.
func (h *Hub) unsubscribeIfIdle(stream string) {
	h.mu.Lock()
	if _, ok := h.pendingUnsub[stream]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.pendingUnsub, stream)
	if h.refs.count(stream) > 0 {
		h.mu.Unlock()
		return
	}
	upstream := h.upstream
	h.mu.Unlock()

	if upstream == nil {
		h.logger.Warn("no upstream bound, skipping unsubscribe", "stream", stream)
		return
	}
	if err := upstream.Unsubscribe(context.Background(), stream); err != nil {
		h.logger.Error("upstream unsubscribe failed", "stream", stream, "err", err)
	}
}

// ConnectTicker registers a ticker client with an empty declared set.
func (h *Hub) ConnectTicker(conn Conn) *TickerClient {
	c := &TickerClient{
		id:      uuid.NewString(),
		conn:    conn,
		symbols: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.tickers[c.id] = c
	h.mu.Unlock()

	metrics.ClientsConnected.WithLabelValues("ticker").Inc()
	h.logger.Info("ticker client connected", "client", c.id)
	return c
}

// SubscribeTicker replaces the client's declared set, rebuilds the
// watchlist, and announces the declared symbols on the bus.
func (h *Hub) SubscribeTicker(c *TickerClient, symbols []string) {
	declared := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			declared[s] = struct{}{}
		}
	}

	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.symbols = declared
	extra := h.declaredLocked()
	h.mu.Unlock()

	h.watch.replace(extra)

	announce := make([]string, 0, len(declared))
	for s := range declared {
		announce = append(announce, s)
	}
	sort.Strings(announce)

	h.logger.Info("ticker client subscribed",
		"client", c.id,
		"symbols", len(announce),
		"watchlist", h.watch.Len(),
	)

	if len(announce) > 0 {
		if err := h.publisher.PublishJSON(bus.SubjectTickerSub, bus.TickerSubscribeCommand{Symbols: announce}); err != nil {
			h.logger.Error("ticker announce failed", "err", err)
		}
	}
}

// DisconnectTicker removes a ticker client and rebuilds the watchlist back
// to the defaults plus the remaining clients' sets.
func (h *Hub) DisconnectTicker(c *TickerClient) bool {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return false
	}
	c.closed = true
	delete(h.tickers, c.id)
	extra := h.declaredLocked()
	h.mu.Unlock()

	h.watch.replace(extra)

	metrics.ClientsConnected.WithLabelValues("ticker").Dec()
	h.logger.Info("ticker client disconnected", "client", c.id)
	return true
}

// MergeWatchlist rebuilds the watchlist with symbols announced by another
// instance folded in. They persist until the next local rebuild.
func (h *Hub) MergeWatchlist(symbols []string) {
	h.mu.Lock()
	extra := h.declaredLocked()
	h.mu.Unlock()

	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			extra[s] = struct{}{}
		}
	}
	h.watch.replace(extra)
}

// declaredLocked unions every connected ticker client's declared set. The
// caller holds the hub lock.
func (h *Hub) declaredLocked() map[string]struct{} {
	extra := make(map[string]struct{})
	for _, c := range h.tickers {
		for s := range c.symbols {
			extra[s] = struct{}{}
		}
	}
	return extra
}

// BroadcastKline fans a kline update out to every client on the pair.
// A failed send evicts that client and continues with the rest.
func (h *Hub) BroadcastKline(symbol, interval string, data model.KlineUpdate) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("kline encode failed", "symbol", symbol, "err", err)
		return
	}

	key := streamKey{strings.ToLower(symbol), interval}
	h.mu.Lock()
	clients := append([]*KlineClient(nil), h.klines[key]...)
	h.mu.Unlock()

	if len(clients) == 0 {
		return
	}
	metrics.Broadcasts.WithLabelValues("kline").Inc()

	for _, c := range clients {
		if err := h.send(c.conn, payload); err != nil {
			h.logger.Warn("kline send failed, evicting client",
				"client", c.id,
				"stream", model.KlineStream(c.symbol, c.interval),
				"err", err,
			)
			h.evictKline(c)
		}
	}
}

// BroadcastTicker sends the whole batch to every ticker client. Clients
// display only the symbols they asked for; no per-client filtering here.
func (h *Hub) BroadcastTicker(batch model.TickerBatch) {
	payload, err := json.Marshal(batch)
	if err != nil {
		h.logger.Error("ticker encode failed", "err", err)
		return
	}

	h.mu.Lock()
	clients := make([]*TickerClient, 0, len(h.tickers))
	for _, c := range h.tickers {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	if len(clients) == 0 {
		return
	}
	metrics.Broadcasts.WithLabelValues("ticker").Inc()

	for _, c := range clients {
		if err := h.send(c.conn, payload); err != nil {
			h.logger.Warn("ticker send failed, evicting client", "client", c.id, "err", err)
			h.evictTicker(c)
		}
	}
}

func (h *Hub) send(conn Conn, payload []byte) error {
	conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) evictKline(c *KlineClient) {
	if h.DisconnectKline(c) {
		metrics.ClientEvictions.WithLabelValues("kline").Inc()
	}
	c.conn.Close()
}

func (h *Hub) evictTicker(c *TickerClient) {
	if h.DisconnectTicker(c) {
		metrics.ClientEvictions.WithLabelValues("ticker").Inc()
	}
	c.conn.Close()
}

// RefCount returns the current count for a stream.
func (h *Hub) RefCount(stream string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs.count(stream)
}

// Streams returns every stream with at least one local client.
func (h *Hub) Streams() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.refs.streams()
	sort.Strings(out)
	return out
}

// ClientCounts returns the number of connected kline and ticker clients.
func (h *Hub) ClientCounts() (klines, tickers int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cs := range h.klines {
		klines += len(cs)
	}
	return klines, len(h.tickers)
}

// Close stops pending unsubscribe timers and closes every client socket.
// In-flight broadcasts are abandoned with their sends.
func (h *Hub) Close() {
	h.mu.Lock()
	for stream, timer := range h.pendingUnsub {
		timer.Stop()
		delete(h.pendingUnsub, stream)
	}

	conns := make([]Conn, 0, len(h.tickers))
	for _, cs := range h.klines {
		for _, c := range cs {
			if !c.closed {
				c.closed = true
				conns = append(conns, c.conn)
				metrics.ClientsConnected.WithLabelValues("kline").Dec()
			}
		}
	}
	for _, c := range h.tickers {
		if !c.closed {
			c.closed = true
			conns = append(conns, c.conn)
			metrics.ClientsConnected.WithLabelValues("ticker").Dec()
		}
	}
	h.klines = make(map[streamKey][]*KlineClient)
	h.tickers = make(map[string]*TickerClient)
	h.refs = newRefCounter()
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	h.logger.Info("client hub closed", "clients", len(conns))
}

func removeKlineClient(clients []*KlineClient, target *KlineClient) []*KlineClient {
	for i, c := range clients {
		if c == target {
			return append(clients[:i], clients[i+1:]...)
		}
	}
	return clients
}
