package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/viewingchart/market-gateway/internal/hub"
	"github.com/viewingchart/market-gateway/internal/model"
)

// controlFrame is the only message ticker clients send: a declared-set
// replacement.
type controlFrame struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// handleKlineWS upgrades a per-stream kline socket. The handler goroutine
// becomes the client's read pump; data flows the other way via the hub.
func (s *Server) handleKlineWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := strings.ToLower(vars["symbol"])
	interval := vars["interval"]

	if symbol == "" || !model.ValidInterval(interval) {
		s.writeError(w, http.StatusBadRequest, "invalid symbol or interval")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("kline upgrade failed", "error", err)
		return
	}

	client := s.deps.Hub.ConnectKline(conn, symbol, interval)
	s.klineReadPump(conn, client)
}

// klineReadPump discards inbound frames until the socket drops. Kline
// clients have no protocol of their own; reading keeps close/ping handling
// alive.
func (s *Server) klineReadPump(conn *websocket.Conn, client *hub.KlineClient) {
	defer s.deps.Hub.DisconnectKline(client)

	conn.SetReadLimit(maxClientFrame)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// handleTickerWS upgrades a ticker socket with an empty declared set.
func (s *Server) handleTickerWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ticker upgrade failed", "error", err)
		return
	}

	client := s.deps.Hub.ConnectTicker(conn)
	s.tickerReadPump(conn, client)
}

// tickerReadPump decodes subscribe control frames. Malformed or unknown
// frames are dropped and the connection stays open.
func (s *Server) tickerReadPump(conn *websocket.Conn, client *hub.TickerClient) {
	defer s.deps.Hub.DisconnectTicker(client)

	conn.SetReadLimit(maxClientFrame)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame controlFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Debug("dropping malformed control frame", "client", client.ID(), "error", err)
			continue
		}
		if frame.Action != "subscribe" {
			s.logger.Debug("dropping unknown control action", "client", client.ID(), "action", frame.Action)
			continue
		}

		s.deps.Hub.SubscribeTicker(client, frame.Symbols)
	}
}
