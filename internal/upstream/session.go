package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/viewingchart/market-gateway/internal/bus"
	"github.com/viewingchart/market-gateway/internal/metrics"
	"github.com/viewingchart/market-gateway/internal/model"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 5 * time.Second
)

// session is one supervised venue connection. It owns its subscription set;
// the set outlives individual sockets and is re-announced in every dial URL.
type session struct {
	venue  model.Venue
	base   string
	cfg    Config
	pub    Publisher
	watch  WatchFilter
	logger *slog.Logger

	cmdID int64 // atomic

	// mu guards the socket slot, the stream set, and pong tracking. Never
	// held across network calls.
	mu       sync.Mutex
	conn     *websocket.Conn
	streams  map[string]struct{}
	lastPong time.Time

	// writeMu serializes data writes on the socket.
	writeMu sync.Mutex
}

func newSession(venue model.Venue, base string, cfg Config, pub Publisher, watch WatchFilter, logger *slog.Logger) *session {
	return &session{
		venue:   venue,
		base:    strings.TrimSuffix(base, "/"),
		cfg:     cfg,
		pub:     pub,
		watch:   watch,
		logger:  logger.With("venue", venue),
		streams: make(map[string]struct{}),
	}
}

// run dials and serves until ctx is canceled. Every failure waits the fixed
// reconnect delay and dials again; the other venue is unaffected.
func (s *session) run(ctx context.Context) {
	for {
		err := s.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("venue session failed", "error", err)
		}

		metrics.UpstreamReconnects.WithLabelValues(string(s.venue)).Inc()
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

// connectAndServe performs one dial-read cycle. The dial URL announces the
// full subscription set, so exchange-side resets never lose interest.
func (s *session) connectAndServe(ctx context.Context) error {
	url := s.dialURL()
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.lastPong = time.Now()
	streamCount := len(s.streams)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		conn.Close()
	}()

	// Both directions of control traffic prove liveness.
	conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		s.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	s.logger.Info("venue connected", "streams", streamCount+1)

	done := make(chan struct{})
	defer close(done)
	go s.heartbeat(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := s.handleFrame(data); err != nil {
			return err
		}
	}
}

// heartbeat pings on the configured interval and kills the socket after
// PingTimeout of silence or on shutdown. Closing the socket unblocks the
// read loop.
func (s *session) heartbeat(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed", "error", err)
			}

			s.mu.Lock()
			stale := time.Since(s.lastPong) > s.cfg.PingTimeout
			s.mu.Unlock()

			if stale {
				s.logger.Warn("venue connection stale", "timeout", s.cfg.PingTimeout)
				conn.Close()
				return
			}
		}
	}
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastPong = time.Now()
	s.mu.Unlock()
}

// handleFrame strips the combined-streams envelope and dispatches by stream
// name. Decode failures tear the connection down; publish failures are
// logged and the read loop continues.
func (s *session) handleFrame(data []byte) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch {
	case f.Result != nil || (f.Stream == "" && f.ID != 0):
		// Command ack; ignored.
		metrics.UpstreamMessages.WithLabelValues(string(s.venue), "ack").Inc()
		return nil

	case f.Stream == model.TickerStream:
		metrics.UpstreamMessages.WithLabelValues(string(s.venue), "ticker").Inc()
		return s.handleTicker(f.Data)

	case strings.Contains(f.Stream, "@kline_"):
		metrics.UpstreamMessages.WithLabelValues(string(s.venue), "kline").Inc()
		return s.handleKline(f.Stream, f.Data)

	default:
		metrics.UpstreamMessages.WithLabelValues(string(s.venue), "other").Inc()
		s.logger.Debug("skipping frame", "stream", f.Stream)
		return nil
	}
}

func (s *session) handleKline(stream string, data []byte) error {
	msg, err := normalizeKline(data)
	if err != nil {
		return err
	}
	if err := s.pub.PublishJSON(bus.SubjectKline, msg); err != nil {
		s.logger.Error("kline publish failed", "stream", stream, "error", err)
	}
	return nil
}

func (s *session) handleTicker(data []byte) error {
	batch, err := filterTickers(data, s.watch)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	if err := s.pub.PublishJSON(bus.SubjectTicker, batch); err != nil {
		s.logger.Error("ticker publish failed", "error", err)
	}
	return nil
}

// dialURL builds the combined-streams URL from the current set. The ticker
// firehose leads so the connection is never empty.
func (s *session) dialURL() string {
	s.mu.Lock()
	streams := make([]string, 0, len(s.streams))
	for st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.Unlock()

	sort.Strings(streams)
	all := append([]string{model.TickerStream}, streams...)
	return s.base + "/stream?streams=" + strings.Join(all, "/")
}

// subscribe adds streams to the set and announces the new ones on the live
// socket. With the socket down the set alone suffices; the next dial URL
// carries it.
func (s *session) subscribe(streams ...string) error {
	s.mu.Lock()
	var added []string
	for _, st := range streams {
		if _, ok := s.streams[st]; ok {
			continue
		}
		s.streams[st] = struct{}{}
		added = append(added, st)
	}
	conn := s.conn
	s.mu.Unlock()

	if len(added) == 0 || conn == nil {
		return nil
	}
	return s.sendCommand(conn, "SUBSCRIBE", added)
}

// unsubscribe drops the stream from the set and tells the venue, when
// connected.
func (s *session) unsubscribe(stream string) error {
	s.mu.Lock()
	_, held := s.streams[stream]
	delete(s.streams, stream)
	conn := s.conn
	s.mu.Unlock()

	if !held || conn == nil {
		return nil
	}
	return s.sendCommand(conn, "UNSUBSCRIBE", []string{stream})
}

func (s *session) sendCommand(conn *websocket.Conn, method string, streams []string) error {
	cmd := command{
		Method: method,
		Params: streams,
		ID:     atomic.AddInt64(&s.cmdID, 1),
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	s.logger.Debug("sent command", "method", method, "streams", streams, "id", cmd.ID)
	return nil
}

func (s *session) holds(stream string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streams[stream]
	return ok
}

func (s *session) heldStreams() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.streams))
	for st := range s.streams {
		out = append(out, st)
	}
	return out
}

func (s *session) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}
