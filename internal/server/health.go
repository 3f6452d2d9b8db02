package server

import "net/http"

// healthStatus is the /health response body.
type healthStatus struct {
	Status        string `json:"status"`
	Bus           bool   `json:"bus"`
	SpotWS        bool   `json:"spot_ws"`
	FuturesWS     bool   `json:"futures_ws"`
	Registry      bool   `json:"registry"`
	KlineClients  int    `json:"kline_clients"`
	TickerClients int    `json:"ticker_clients"`
}

// handleHealth reports component status. The instance is unhealthy without
// the bus or a registry snapshot; venue sockets are reported but do not gate,
// since the reconnect loop owns their recovery.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	spot, deriv := s.deps.Venues.Connected()
	klines, tickers := s.deps.Hub.ClientCounts()

	status := healthStatus{
		Bus:           s.deps.Bus.IsConnected(),
		SpotWS:        spot,
		FuturesWS:     deriv,
		Registry:      s.deps.Registry.Ready(),
		KlineClients:  klines,
		TickerClients: tickers,
	}

	code := http.StatusOK
	status.Status = "ok"
	if !status.Bus || !status.Registry {
		code = http.StatusServiceUnavailable
		status.Status = "degraded"
	}

	s.writeJSON(w, code, status)
}
