package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/viewingchart/market-gateway/internal/binance"
	"github.com/viewingchart/market-gateway/internal/bus"
	"github.com/viewingchart/market-gateway/internal/config"
	"github.com/viewingchart/market-gateway/internal/hub"
	"github.com/viewingchart/market-gateway/internal/registry"
	"github.com/viewingchart/market-gateway/internal/relay"
	"github.com/viewingchart/market-gateway/internal/server"
	"github.com/viewingchart/market-gateway/internal/upstream"
)

// Gateway composes one instance: bus, registry, hub, upstream sessions,
// relay, and the HTTP/WS edge. Components are created and started in
// dependency order and stopped in reverse.
type Gateway struct {
	cfg    *config.GatewayConfig
	logger *slog.Logger

	market *binance.Client

	bus      *bus.Bus
	registry registry.Registry
	hub      *hub.Hub
	mux      *upstream.Multiplexer
	relay    *relay.Relay
	server   *server.Server
}

// New creates a Gateway from configuration. No connections are opened
// until Start.
func New(cfg *config.GatewayConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		cfg:    cfg,
		logger: logger,
		market: binance.NewClient(
			cfg.Upstream.SpotRestURL,
			cfg.Upstream.FuturesRestURL,
			binance.WithLogger(logger),
			binance.WithTimeout(cfg.Upstream.Timeout),
			binance.WithRetries(cfg.Upstream.MaxRetries, time.Second),
		),
	}
}

// Start brings the instance up: bus connect, symbol registry (warm start
// plus refresh loop), both venue sessions, the bus relay, and finally the
// HTTP listener. A failure at any step tears down whatever already started.
func (g *Gateway) Start(ctx context.Context) error {
	b, err := bus.Connect(g.cfg.Bus, g.logger)
	if err != nil {
		return err
	}
	g.bus = b

	// The snapshot cache is an optimization; a gateway without it just
	// hits the exchange REST API on startup.
	var store registry.SnapshotStore
	if kv, err := b.SnapshotStore(g.cfg.Cache.Bucket, g.cfg.Cache.TTL); err != nil {
		g.logger.Warn("snapshot cache unavailable", "bucket", g.cfg.Cache.Bucket, "error", err)
	} else {
		store = kv
	}

	g.registry = registry.New(registry.Config{
		TTL: g.cfg.Cache.TTL,
	}, g.market, store, g.logger)

	if err := g.registry.Start(ctx); err != nil {
		g.Stop(ctx)
		return fmt.Errorf("start registry: %w", err)
	}

	g.hub = hub.New(hub.Config{
		WriteTimeout:     g.cfg.Hub.WriteTimeout,
		DefaultWatchlist: g.cfg.Hub.DefaultWatchlist,
		UnsubscribeGrace: g.cfg.Hub.UnsubscribeGrace,
	}, g.bus, g.logger)

	g.mux = upstream.New(upstream.Config{
		SpotURL:        g.cfg.Upstream.SpotWSURL,
		FuturesURL:     g.cfg.Upstream.FuturesWSURL,
		ReconnectDelay: g.cfg.Upstream.ReconnectDelay,
		PingInterval:   g.cfg.Upstream.PingInterval,
		PingTimeout:    g.cfg.Upstream.PingTimeout,
	}, g.registry, g.bus, g.hub.Watchlist(), g.logger)
	g.hub.SetUpstream(g.mux)

	if err := g.mux.Start(ctx); err != nil {
		g.Stop(ctx)
		return fmt.Errorf("start upstream: %w", err)
	}

	g.relay = relay.New(g.bus, g.hub, g.mux, g.logger)
	if err := g.relay.Start(ctx); err != nil {
		g.Stop(ctx)
		return fmt.Errorf("start relay: %w", err)
	}

	g.server = server.New(g.cfg.Server, server.Deps{
		Hub:      g.hub,
		Registry: g.registry,
		Market:   g.market,
		Bus:      g.bus,
		Venues:   g.mux,
	}, g.logger)

	if err := g.server.Start(ctx); err != nil {
		g.Stop(ctx)
		return fmt.Errorf("start server: %w", err)
	}

	g.logger.Info("gateway started",
		"instance", g.cfg.Instance.ID,
		"addr", g.cfg.Server.Addr,
	)
	return nil
}

// Stop shuts components down in reverse start order: stop accepting
// clients, stop dispatching bus messages, close the venue sockets, stop
// the registry, drop the remaining client sockets, and close the bus.
// Components that never started are skipped, so Stop also cleans up after
// a failed Start. The first error is reported; shutdown continues past it.
func (g *Gateway) Stop(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if g.server != nil {
		keep(g.server.Stop(ctx))
	}
	if g.relay != nil {
		keep(g.relay.Stop(ctx))
	}
	if g.mux != nil {
		keep(g.mux.Stop(ctx))
	}
	if g.registry != nil {
		keep(g.registry.Stop(ctx))
	}
	if g.hub != nil {
		g.hub.Close()
	}
	if g.bus != nil {
		g.bus.Close()
	}

	return firstErr
}
