package upstream

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/viewingchart/market-gateway/internal/model"
)

// Classifier resolves which venue carries a symbol.
type Classifier interface {
	Classify(ctx context.Context, symbol string) model.Venue
}

// Publisher publishes normalized events to the bus.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// WatchFilter gates ticker firehose items before they reach the bus.
type WatchFilter interface {
	Contains(symbol string) bool
}

// Multiplexer runs the two venue sessions and routes dynamic subscription
// changes between them.
type Multiplexer struct {
	cfg        Config
	classifier Classifier
	logger     *slog.Logger

	spot  *session
	deriv *session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Upstream Multiplexer.
func New(cfg Config, classifier Classifier, pub Publisher, watch WatchFilter, logger *slog.Logger) *Multiplexer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}

	return &Multiplexer{
		cfg:        cfg,
		classifier: classifier,
		logger:     logger,
		spot:       newSession(model.VenueSpot, cfg.SpotURL, cfg, pub, watch, logger),
		deriv:      newSession(model.VenueDeriv, cfg.FuturesURL, cfg, pub, watch, logger),
	}
}

// Start launches both venue sessions. Each runs its own dial-read-reconnect
// cycle until Stop.
func (m *Multiplexer) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	for _, s := range []*session{m.spot, m.deriv} {
		m.wg.Add(1)
		go func(s *session) {
			defer m.wg.Done()
			s.run(m.ctx)
		}(s)
	}

	m.logger.Info("upstream multiplexer started",
		"spot_url", m.cfg.SpotURL,
		"futures_url", m.cfg.FuturesURL,
	)
	return nil
}

// Stop closes both venue sockets and waits for the sessions to exit.
func (m *Multiplexer) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("upstream multiplexer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe routes the stream to its venue and announces it there. Streams
// either session already carries are left alone, so replayed bus commands
// are harmless.
func (m *Multiplexer) Subscribe(ctx context.Context, stream string) error {
	if m.spot.holds(stream) || m.deriv.holds(stream) {
		return nil
	}
	return m.route(ctx, stream).subscribe(stream)
}

// Unsubscribe drops the stream from whichever session carries it.
func (m *Multiplexer) Unsubscribe(ctx context.Context, stream string) error {
	if m.spot.holds(stream) {
		return m.spot.unsubscribe(stream)
	}
	if m.deriv.holds(stream) {
		return m.deriv.unsubscribe(stream)
	}
	return nil
}

// route picks the venue session for a stream. Symbols the registry does not
// know default to spot.
func (m *Multiplexer) route(ctx context.Context, stream string) *session {
	symbol := model.StreamSymbol(stream)
	if symbol == "" {
		return m.spot
	}
	if m.classifier.Classify(ctx, symbol) == model.VenueDeriv {
		return m.deriv
	}
	return m.spot
}

// Streams returns every stream carried across both venues, sorted.
func (m *Multiplexer) Streams() []string {
	out := append(m.spot.heldStreams(), m.deriv.heldStreams()...)
	sort.Strings(out)
	return out
}

// Connected reports each venue session's socket state.
func (m *Multiplexer) Connected() (spot, deriv bool) {
	return m.spot.connected(), m.deriv.connected()
}
