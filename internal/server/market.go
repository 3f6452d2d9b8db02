package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/viewingchart/market-gateway/internal/model"
)

const (
	// restKlineLimit is the fixed candle count for REST kline lookups.
	restKlineLimit = 1000

	defaultSearchLimit = 50
	maxSearchLimit     = 200
)

// handleKlines serves historical candles for charting backfill.
//
// GET /market/klines/{symbol}?interval=1d&asset_type=crypto
func (s *Server) handleKlines(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	q := r.URL.Query()
	interval := q.Get("interval")
	if interval == "" {
		interval = "1d"
	}
	assetType := q.Get("asset_type")
	if assetType == "" {
		assetType = "crypto"
	}

	// Stock data has no adapter; the endpoint shape stays stable for
	// mixed-asset clients.
	if assetType == "stock" {
		s.writeJSON(w, http.StatusOK, []model.KlineUpdate{})
		return
	}

	if !model.ValidInterval(interval) {
		s.writeError(w, http.StatusBadRequest, "invalid interval: "+interval)
		return
	}

	venue := s.deps.Registry.Classify(r.Context(), symbol)
	klines, err := s.deps.Market.Klines(r.Context(), venue, symbol, interval, restKlineLimit)
	if err != nil {
		s.logger.Warn("kline fetch failed", "symbol", symbol, "interval", interval, "error", err)
		s.writeError(w, http.StatusNotFound, "no kline data for "+symbol)
		return
	}
	if len(klines) == 0 {
		s.writeError(w, http.StatusNotFound, "no kline data for "+symbol)
		return
	}

	s.writeJSON(w, http.StatusOK, klines)
}

// handleTickers serves a 24h stats batch.
//
// GET /market/tickers?crypto_symbols=BTCUSDT,ETHUSDT&stock_symbols=
// Stock symbols are accepted and ignored.
func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("crypto_symbols"))
	if len(symbols) == 0 {
		s.writeJSON(w, http.StatusOK, model.TickerBatch{})
		return
	}

	var spot, deriv []string
	for _, sym := range symbols {
		if s.deps.Registry.Classify(r.Context(), sym) == model.VenueDeriv {
			deriv = append(deriv, sym)
		} else {
			spot = append(spot, sym)
		}
	}

	batch, err := s.deps.Market.Ticker24h(r.Context(), spot, deriv)
	if err != nil {
		s.logger.Warn("ticker fetch failed", "symbols", len(symbols), "error", err)
		s.writeJSON(w, http.StatusOK, model.TickerBatch{})
		return
	}

	s.writeJSON(w, http.StatusOK, batch)
}

// handleSearch serves symbol lookup against the registry snapshot.
//
// GET /market/search?query=btc&asset_type=crypto&limit=50
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	if assetType := q.Get("asset_type"); assetType != "" && assetType != "crypto" {
		s.writeJSON(w, http.StatusOK, []model.Symbol{})
		return
	}

	limit := defaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = min(n, maxSearchLimit)
	}

	results := s.deps.Registry.Search(r.Context(), query, limit)
	if results == nil {
		results = []model.Symbol{}
	}
	s.writeJSON(w, http.StatusOK, results)
}

// handlePopular serves the volume-ranked popular list.
//
// GET /market/popular
func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	popular := s.deps.Registry.Popular(r.Context())
	if popular == nil {
		popular = []model.Symbol{}
	}
	s.writeJSON(w, http.StatusOK, popular)
}

// splitSymbols parses a comma-separated symbol list, uppercased, blanks
// skipped.
func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
