package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/viewingchart/market-gateway/internal/bus"
	"github.com/viewingchart/market-gateway/internal/model"
)

// mockVenue is a fake combined-streams endpoint. It records every dial's
// streams parameter and every live command, and can push frames or kill the
// active socket to force a reconnect.
type mockVenue struct {
	server *httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn

	dialCh chan string
	cmdCh  chan command
}

func newMockVenue(t *testing.T) *mockVenue {
	t.Helper()

	v := &mockVenue{
		dialCh: make(chan string, 8),
		cmdCh:  make(chan command, 8),
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	v.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		v.mu.Lock()
		v.conns = append(v.conns, conn)
		v.mu.Unlock()
		v.dialCh <- r.URL.Query().Get("streams")

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if json.Unmarshal(data, &cmd) == nil && cmd.Method != "" {
				v.cmdCh <- cmd
			}
		}
	}))

	t.Cleanup(v.server.Close)
	return v
}

func (v *mockVenue) url() string {
	return "ws" + strings.TrimPrefix(v.server.URL, "http")
}

func (v *mockVenue) active() *websocket.Conn {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.conns) == 0 {
		return nil
	}
	return v.conns[len(v.conns)-1]
}

func (v *mockVenue) sendFrame(t *testing.T, payload string) {
	t.Helper()
	conn := v.active()
	if conn == nil {
		t.Fatal("no active connection to send on")
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("send frame: %v", err)
	}
}

func (v *mockVenue) closeActive(t *testing.T) {
	t.Helper()
	conn := v.active()
	if conn == nil {
		t.Fatal("no active connection to close")
	}
	conn.Close()
}

func (v *mockVenue) waitDial(t *testing.T) string {
	t.Helper()
	select {
	case streams := <-v.dialCh:
		return streams
	case <-time.After(2 * time.Second):
		t.Fatal("no dial within 2s")
		return ""
	}
}

func (v *mockVenue) waitCmd(t *testing.T) command {
	t.Helper()
	select {
	case cmd := <-v.cmdCh:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("no command within 2s")
		return command{}
	}
}

func (v *mockVenue) expectNoCmd(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case cmd := <-v.cmdCh:
		t.Fatalf("unexpected command %s %v", cmd.Method, cmd.Params)
	case <-time.After(wait):
	}
}

// fakePublisher records published messages by subject.
type fakePublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
	ch   chan string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		msgs: make(map[string][][]byte),
		ch:   make(chan string, 32),
	}
}

func (f *fakePublisher) PublishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.msgs[subject] = append(f.msgs[subject], data)
	f.mu.Unlock()
	f.ch <- subject
	return nil
}

func (f *fakePublisher) waitPublish(t *testing.T, subject string) []byte {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.ch:
			if got != subject {
				continue
			}
			f.mu.Lock()
			msgs := f.msgs[subject]
			last := msgs[len(msgs)-1]
			f.mu.Unlock()
			return last
		case <-deadline:
			t.Fatalf("no publish on %s within 2s", subject)
			return nil
		}
	}
}

func (f *fakePublisher) count(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs[subject])
}

// staticWatch is a fixed watchlist filter.
type staticWatch map[string]struct{}

func (w staticWatch) Contains(symbol string) bool {
	_, ok := w[symbol]
	return ok
}

// staticClassifier maps symbols to venues; everything else is UNKNOWN.
type staticClassifier map[string]model.Venue

func (c staticClassifier) Classify(_ context.Context, symbol string) model.Venue {
	if v, ok := c[symbol]; ok {
		return v
	}
	return model.VenueUnknown
}

func testConfig(spot, deriv *mockVenue) Config {
	return Config{
		SpotURL:        spot.url(),
		FuturesURL:     deriv.url(),
		ReconnectDelay: 50 * time.Millisecond,
		PingInterval:   time.Second,
		PingTimeout:    5 * time.Second,
	}
}

func startMux(t *testing.T, cfg Config, classifier Classifier, pub Publisher, watch WatchFilter) *Multiplexer {
	t.Helper()

	m := New(cfg, classifier, pub, watch, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.Stop(ctx)
	})
	return m
}

// waitConnected blocks until both sessions report a live socket, so tests
// can issue live commands without racing the dial.
func waitConnected(t *testing.T, m *Multiplexer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if spot, deriv := m.Connected(); spot && deriv {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sessions not connected within 2s")
}

func TestNormalizeKline(t *testing.T) {
	payload := `{"e":"kline","E":1700000000123,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"s":"BTCUSDT","i":"1m","o":"27000.5","c":"27050.1","h":"27100.0","l":"26950.25","v":"12.5","x":false}}`

	msg, err := normalizeKline([]byte(payload))
	if err != nil {
		t.Fatalf("normalizeKline failed: %v", err)
	}

	if msg.Symbol != "btcusdt" {
		t.Errorf("Symbol = %q, want btcusdt", msg.Symbol)
	}
	if msg.Interval != "1m" {
		t.Errorf("Interval = %q, want 1m", msg.Interval)
	}
	want := model.KlineUpdate{Time: 1700000000, Open: 27000.5, High: 27100.0, Low: 26950.25, Close: 27050.1, Volume: 12.5}
	if msg.Data != want {
		t.Errorf("Data = %+v, want %+v", msg.Data, want)
	}
}

func TestNormalizeKlineBadNumeric(t *testing.T) {
	payload := `{"s":"BTCUSDT","k":{"t":1700000000000,"i":"1m","o":"not-a-number","c":"1","h":"1","l":"1","v":"1"}}`

	if _, err := normalizeKline([]byte(payload)); err == nil {
		t.Error("expected error for bad numeric, got nil")
	}
}

func TestFilterTickers(t *testing.T) {
	payload := `[
		{"e":"24hrTicker","s":"BTCUSDT","c":"48000.5","p":"120.5","P":"0.25"},
		{"e":"24hrTicker","s":"DOGEUSDT","c":"0.1","p":"0.01","P":"10.0"},
		{"e":"24hrTicker","s":"ETHUSDT","c":"2600.0","p":"-13.0","P":"-0.5"}
	]`
	watch := staticWatch{"BTCUSDT": {}, "ETHUSDT": {}}

	batch, err := filterTickers([]byte(payload), watch)
	if err != nil {
		t.Fatalf("filterTickers failed: %v", err)
	}

	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want 2", len(batch))
	}
	if _, ok := batch["DOGEUSDT"]; ok {
		t.Error("unwatched DOGEUSDT should be filtered out")
	}
	btc := batch["BTCUSDT"]
	if btc.LastPrice != 48000.5 || btc.PriceChange != 120.5 || btc.PriceChangePercent != 0.25 {
		t.Errorf("BTCUSDT entry = %+v", btc)
	}
	eth := batch["ETHUSDT"]
	if eth.PriceChange != -13.0 {
		t.Errorf("ETHUSDT PriceChange = %v, want -13.0", eth.PriceChange)
	}
}

// TestSessionPublishesKline runs the full path: venue frame in, normalized
// bus message out.
func TestSessionPublishesKline(t *testing.T) {
	spot := newMockVenue(t)
	deriv := newMockVenue(t)
	pub := newFakePublisher()

	startMux(t, testConfig(spot, deriv), staticClassifier{}, pub, staticWatch{})
	spot.waitDial(t)
	deriv.waitDial(t)

	spot.sendFrame(t, `{"stream":"btcusdt@kline_1m","data":{"s":"BTCUSDT","k":{"t":1700000000000,"i":"1m","o":"27000.5","h":"27100.0","l":"26950.0","c":"27050.0","v":"12.5"}}}`)

	data := pub.waitPublish(t, bus.SubjectKline)
	var msg bus.KlineMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal published kline: %v", err)
	}
	if msg.Symbol != "btcusdt" || msg.Interval != "1m" {
		t.Errorf("published (%s, %s), want (btcusdt, 1m)", msg.Symbol, msg.Interval)
	}
	if msg.Data.Time != 1700000000 {
		t.Errorf("Time = %d, want 1700000000 (ms truncated)", msg.Data.Time)
	}
	if msg.Data.Open != 27000.5 {
		t.Errorf("Open = %v, want 27000.5", msg.Data.Open)
	}
}

// TestSessionSkipsAcks tests that command acks never reach the bus.
func TestSessionSkipsAcks(t *testing.T) {
	spot := newMockVenue(t)
	deriv := newMockVenue(t)
	pub := newFakePublisher()

	startMux(t, testConfig(spot, deriv), staticClassifier{}, pub, staticWatch{})
	spot.waitDial(t)
	deriv.waitDial(t)

	spot.sendFrame(t, `{"result":null,"id":1}`)
	spot.sendFrame(t, `{"stream":"btcusdt@kline_1m","data":{"s":"BTCUSDT","k":{"t":1700000000000,"i":"1m","o":"1","h":"1","l":"1","c":"1","v":"1"}}}`)

	pub.waitPublish(t, bus.SubjectKline)
	if got := pub.count(bus.SubjectKline); got != 1 {
		t.Errorf("kline publishes = %d, want 1 (ack must not publish)", got)
	}
	if got := pub.count(bus.SubjectTicker); got != 0 {
		t.Errorf("ticker publishes = %d, want 0", got)
	}
}

// TestSessionFiltersTickerFirehose tests watchlist filtering and the
// no-publish-on-empty rule.
func TestSessionFiltersTickerFirehose(t *testing.T) {
	spot := newMockVenue(t)
	deriv := newMockVenue(t)
	pub := newFakePublisher()
	watch := staticWatch{"BTCUSDT": {}}

	startMux(t, testConfig(spot, deriv), staticClassifier{}, pub, watch)
	spot.waitDial(t)
	deriv.waitDial(t)

	// Nothing watched in this frame: no publish.
	spot.sendFrame(t, `{"stream":"!ticker@arr","data":[{"s":"DOGEUSDT","c":"0.1","p":"0.01","P":"10.0"}]}`)
	// Watched symbol present: publish the filtered batch.
	spot.sendFrame(t, `{"stream":"!ticker@arr","data":[{"s":"BTCUSDT","c":"48000.5","p":"120.5","P":"0.25"},{"s":"DOGEUSDT","c":"0.1","p":"0.01","P":"10.0"}]}`)

	data := pub.waitPublish(t, bus.SubjectTicker)
	var batch model.TickerBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		t.Fatalf("unmarshal published batch: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("batch size = %d, want 1", len(batch))
	}
	if batch["BTCUSDT"].LastPrice != 48000.5 {
		t.Errorf("BTCUSDT LastPrice = %v, want 48000.5", batch["BTCUSDT"].LastPrice)
	}
	if got := pub.count(bus.SubjectTicker); got != 1 {
		t.Errorf("ticker publishes = %d, want 1 (empty batch must not publish)", got)
	}
}

// TestSubscribeRoutesByVenue tests classification-driven routing: DERIV
// symbols go to the derivatives session, spot and unknown symbols to spot.
func TestSubscribeRoutesByVenue(t *testing.T) {
	spot := newMockVenue(t)
	deriv := newMockVenue(t)
	pub := newFakePublisher()
	classifier := staticClassifier{
		"BTCUSDT": model.VenueSpot,
		"XAUUSDT": model.VenueDeriv,
	}

	m := startMux(t, testConfig(spot, deriv), classifier, pub, staticWatch{})
	spot.waitDial(t)
	deriv.waitDial(t)
	waitConnected(t, m)

	if err := m.Subscribe(context.Background(), "xauusdt@kline_1h"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cmd := deriv.waitCmd(t)
	if cmd.Method != "SUBSCRIBE" {
		t.Errorf("deriv method = %s, want SUBSCRIBE", cmd.Method)
	}
	if len(cmd.Params) != 1 || cmd.Params[0] != "xauusdt@kline_1h" {
		t.Errorf("deriv params = %v, want [xauusdt@kline_1h]", cmd.Params)
	}

	if err := m.Subscribe(context.Background(), "btcusdt@kline_1m"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cmd = spot.waitCmd(t)
	if len(cmd.Params) != 1 || cmd.Params[0] != "btcusdt@kline_1m" {
		t.Errorf("spot params = %v, want [btcusdt@kline_1m]", cmd.Params)
	}

	// Unknown symbols default to spot.
	if err := m.Subscribe(context.Background(), "mysteryusdt@kline_5m"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cmd = spot.waitCmd(t)
	if len(cmd.Params) != 1 || cmd.Params[0] != "mysteryusdt@kline_5m" {
		t.Errorf("spot params = %v, want [mysteryusdt@kline_5m]", cmd.Params)
	}
}

// TestSubscribeIdempotent tests that a stream the mux already carries is
// not re-announced, no matter which venue holds it.
func TestSubscribeIdempotent(t *testing.T) {
	spot := newMockVenue(t)
	deriv := newMockVenue(t)
	pub := newFakePublisher()

	m := startMux(t, testConfig(spot, deriv), staticClassifier{}, pub, staticWatch{})
	spot.waitDial(t)
	deriv.waitDial(t)
	waitConnected(t, m)

	if err := m.Subscribe(context.Background(), "btcusdt@kline_1m"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	spot.waitCmd(t)

	if err := m.Subscribe(context.Background(), "btcusdt@kline_1m"); err != nil {
		t.Fatalf("repeat Subscribe failed: %v", err)
	}
	spot.expectNoCmd(t, 200*time.Millisecond)

	want := []string{"btcusdt@kline_1m"}
	if got := m.Streams(); len(got) != 1 || got[0] != want[0] {
		t.Errorf("Streams = %v, want %v", got, want)
	}
}

// TestUnsubscribe tests the UNSUBSCRIBE command lands on the owning venue
// and the stream leaves the live set.
func TestUnsubscribe(t *testing.T) {
	spot := newMockVenue(t)
	deriv := newMockVenue(t)
	pub := newFakePublisher()
	classifier := staticClassifier{"XAUUSDT": model.VenueDeriv}

	m := startMux(t, testConfig(spot, deriv), classifier, pub, staticWatch{})
	spot.waitDial(t)
	deriv.waitDial(t)
	waitConnected(t, m)

	if err := m.Subscribe(context.Background(), "xauusdt@kline_1h"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	deriv.waitCmd(t)

	if err := m.Unsubscribe(context.Background(), "xauusdt@kline_1h"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	cmd := deriv.waitCmd(t)
	if cmd.Method != "UNSUBSCRIBE" {
		t.Errorf("method = %s, want UNSUBSCRIBE", cmd.Method)
	}
	if len(cmd.Params) != 1 || cmd.Params[0] != "xauusdt@kline_1h" {
		t.Errorf("params = %v, want [xauusdt@kline_1h]", cmd.Params)
	}
	if got := m.Streams(); len(got) != 0 {
		t.Errorf("Streams = %v, want empty", got)
	}

	// Unsubscribing an unheld stream is a no-op.
	if err := m.Unsubscribe(context.Background(), "xauusdt@kline_1h"); err != nil {
		t.Fatalf("repeat Unsubscribe failed: %v", err)
	}
	deriv.expectNoCmd(t, 200*time.Millisecond)
}

// TestReconnectReannouncesStreams tests that after a venue-side disconnect
// the new dial URL carries every held stream plus the firehose.
func TestReconnectReannouncesStreams(t *testing.T) {
	spot := newMockVenue(t)
	deriv := newMockVenue(t)
	pub := newFakePublisher()

	m := startMux(t, testConfig(spot, deriv), staticClassifier{}, pub, staticWatch{})
	first := spot.waitDial(t)
	deriv.waitDial(t)
	waitConnected(t, m)

	if first != model.TickerStream {
		t.Errorf("initial dial streams = %q, want %q", first, model.TickerStream)
	}

	if err := m.Subscribe(context.Background(), "btcusdt@kline_1m"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := m.Subscribe(context.Background(), "ethusdt@kline_4h"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	spot.waitCmd(t)
	spot.waitCmd(t)

	spot.closeActive(t)

	second := spot.waitDial(t)
	want := model.TickerStream + "/btcusdt@kline_1m/ethusdt@kline_4h"
	if second != want {
		t.Errorf("reconnect dial streams = %q, want %q", second, want)
	}
}

// TestStopClosesSessions tests that Stop unblocks both read loops.
func TestStopClosesSessions(t *testing.T) {
	spot := newMockVenue(t)
	deriv := newMockVenue(t)
	pub := newFakePublisher()

	m := New(testConfig(spot, deriv), staticClassifier{}, pub, staticWatch{}, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	spot.waitDial(t)
	deriv.waitDial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	spotUp, derivUp := m.Connected()
	if spotUp || derivUp {
		t.Errorf("Connected = (%v, %v), want (false, false)", spotUp, derivUp)
	}
}
