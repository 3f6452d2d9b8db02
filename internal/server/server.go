package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/viewingchart/market-gateway/internal/config"
	"github.com/viewingchart/market-gateway/internal/hub"
	"github.com/viewingchart/market-gateway/internal/model"
	"github.com/viewingchart/market-gateway/internal/registry"
)

const (
	readHeaderTimeout = 10 * time.Second

	// maxClientFrame bounds inbound client frames; clients only send small
	// control messages.
	maxClientFrame = 4096
)

// MarketData serves the REST lookups. The exchange REST adapter implements
// it.
type MarketData interface {
	Klines(ctx context.Context, venue model.Venue, symbol, interval string, limit int) ([]model.KlineUpdate, error)
	Ticker24h(ctx context.Context, spotSymbols, futuresSymbols []string) (model.TickerBatch, error)
}

// BusStatus reports bus connectivity for the health endpoint.
type BusStatus interface {
	IsConnected() bool
}

// VenueStatus reports upstream socket state for the health endpoint.
type VenueStatus interface {
	Connected() (spot, deriv bool)
}

// Deps are the collaborators the server hands requests to.
type Deps struct {
	Hub      *hub.Hub
	Registry registry.Registry
	Market   MarketData
	Bus      BusStatus
	Venues   VenueStatus
}

// Server is the HTTP/WS edge: it upgrades client sockets into the hub and
// serves the market REST surface. It does no market-data work itself.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	logger *slog.Logger

	handler  http.Handler
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// New creates the server and builds its route table.
func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.handler = s.buildRoutes()
	return s
}

func (s *Server) buildRoutes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws/{symbol}/{interval}", s.handleKlineWS).Methods(http.MethodGet)
	r.HandleFunc("/ws/tickers", s.handleTickerWS).Methods(http.MethodGet)

	r.HandleFunc("/market/klines/{symbol}", s.handleKlines).Methods(http.MethodGet)
	r.HandleFunc("/market/tickers", s.handleTickers).Methods(http.MethodGet)
	r.HandleFunc("/market/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/market/popular", s.handlePopular).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler(r)
}

// Start binds the listener and begins serving. The bind happens
// synchronously so address errors surface here, not in the serve goroutine.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	s.logger.Info("http server started", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the listener down and waits for handlers to return. WebSocket
// connections are hijacked and stay out of Shutdown's reach; the hub closes
// them.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown incomplete", "error", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("http server stopped")
	case <-ctx.Done():
		s.logger.Warn("http server stop timed out")
	}
	return nil
}

// Addr returns the bound listen address, useful with ":0" configs.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"detail": msg})
}
