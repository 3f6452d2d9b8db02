package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/viewingchart/market-gateway/internal/bus"
	"github.com/viewingchart/market-gateway/internal/metrics"
	"github.com/viewingchart/market-gateway/internal/model"
)

var errMissingFields = errors.New("required fields missing")

// Broadcaster receives decoded market data and watchlist merges. The hub
// implements it.
type Broadcaster interface {
	BroadcastKline(symbol, interval string, data model.KlineUpdate)
	BroadcastTicker(batch model.TickerBatch)
	MergeWatchlist(symbols []string)
}

// Subscriber opens upstream streams in response to bus commands. The
// upstream multiplexer implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, stream string) error
}

// BusSubscriber registers handlers on bus subjects.
type BusSubscriber interface {
	Subscribe(subject string, handler func(data []byte)) error
}

// Relay bridges bus subjects to local components: data subjects fan out
// through the hub, command subjects reach the upstream multiplexer and the
// shared watchlist. Each subject has exactly one decoder; payload shapes are
// never probed.
type Relay struct {
	bus      BusSubscriber
	hub      Broadcaster
	upstream Subscriber
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Relay. Call Start to register the subject handlers.
func New(b BusSubscriber, h Broadcaster, u Subscriber, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		bus:      b,
		hub:      h,
		upstream: u,
		logger:   logger,
	}
}

// Start registers one handler per subject. Handlers run on the bus client's
// delivery goroutine, so per-subject ordering is preserved.
func (r *Relay) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	routes := []struct {
		subject string
		handler func(data []byte)
	}{
		{bus.SubjectKline, r.handleKline},
		{bus.SubjectTicker, r.handleTicker},
		{bus.SubjectKlineSub, r.handleKlineSub},
		{bus.SubjectTickerSub, r.handleTickerSub},
	}
	for _, rt := range routes {
		if err := r.bus.Subscribe(rt.subject, rt.handler); err != nil {
			return err
		}
	}

	r.logger.Info("relay started", "subjects", len(routes))
	return nil
}

// Stop halts dispatching. The bus connection owns the subscriptions and
// detaches them when it closes.
func (r *Relay) Stop(context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	r.logger.Info("relay stopped")
	return nil
}

func (r *Relay) handleKline(data []byte) {
	if r.ctx.Err() != nil {
		return
	}

	var msg bus.KlineMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		r.drop(bus.SubjectKline, err)
		return
	}
	if msg.Symbol == "" || msg.Interval == "" {
		r.drop(bus.SubjectKline, errMissingFields)
		return
	}

	r.hub.BroadcastKline(msg.Symbol, msg.Interval, msg.Data)
}

func (r *Relay) handleTicker(data []byte) {
	if r.ctx.Err() != nil {
		return
	}

	var batch bus.TickerMessage
	if err := json.Unmarshal(data, &batch); err != nil {
		r.drop(bus.SubjectTicker, err)
		return
	}
	if len(batch) == 0 {
		return
	}

	r.hub.BroadcastTicker(batch)
}

// handleKlineSub reacts to first-interest announcements from any instance,
// this one included, by opening the stream upstream. The multiplexer dedups,
// so duplicate announcements are harmless.
func (r *Relay) handleKlineSub(data []byte) {
	if r.ctx.Err() != nil {
		return
	}

	var cmd bus.SubscribeCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		r.drop(bus.SubjectKlineSub, err)
		return
	}
	if cmd.Stream == "" {
		r.drop(bus.SubjectKlineSub, errMissingFields)
		return
	}

	if err := r.upstream.Subscribe(r.ctx, cmd.Stream); err != nil {
		r.logger.Warn("upstream subscribe failed", "stream", cmd.Stream, "error", err)
	}
}

func (r *Relay) handleTickerSub(data []byte) {
	if r.ctx.Err() != nil {
		return
	}

	var cmd bus.TickerSubscribeCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		r.drop(bus.SubjectTickerSub, err)
		return
	}
	if len(cmd.Symbols) == 0 {
		return
	}

	r.hub.MergeWatchlist(cmd.Symbols)
}

func (r *Relay) drop(subject string, err error) {
	metrics.RelayDropped.WithLabelValues(subject).Inc()
	r.logger.Debug("dropping undecodable message", "subject", subject, "error", err)
}
