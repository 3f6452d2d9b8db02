// streamtest connects to a running gateway and streams market data frames to
// console. It taps the same WebSocket endpoints chart clients use, so it
// exercises the whole pipeline: venue socket, bus, relay, hub, edge.
//
// Usage:
//
//	go run ./cmd/streamtest -addr localhost:8000 -symbol BTCUSDT -interval 1m
//	go run ./cmd/streamtest -addr localhost:8000 -symbol "" -tickers BTCUSDT,ETHUSDT
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/viewingchart/market-gateway/internal/model"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "gateway address")
	symbol := flag.String("symbol", "BTCUSDT", "kline symbol (empty to skip the kline tap)")
	interval := flag.String("interval", "1m", "kline interval")
	tickers := flag.String("tickers", "", "comma-separated symbols for the ticker tap")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	var (
		conns      []*websocket.Conn
		klineCount atomic.Int64
		batchCount atomic.Int64
	)

	if *symbol != "" {
		if !model.ValidInterval(*interval) {
			logger.Error("invalid interval", "interval", *interval)
			os.Exit(1)
		}

		u := url.URL{
			Scheme: "ws",
			Host:   *addr,
			Path:   fmt.Sprintf("/ws/%s/%s", strings.ToLower(*symbol), *interval),
		}
		conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err != nil {
			logger.Error("kline dial failed", "url", u.String(), "error", err)
			os.Exit(1)
		}
		conns = append(conns, conn)
		logger.Info("kline stream open", "symbol", *symbol, "interval", *interval)

		go printKlines(ctx, conn, *verbose, &klineCount, logger)
	}

	if *tickers != "" {
		u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/tickers"}
		conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err != nil {
			logger.Error("ticker dial failed", "url", u.String(), "error", err)
			os.Exit(1)
		}
		conns = append(conns, conn)

		declared := strings.Split(*tickers, ",")
		sub := map[string]any{"action": "subscribe", "symbols": declared}
		if err := conn.WriteJSON(sub); err != nil {
			logger.Error("ticker subscribe failed", "error", err)
			os.Exit(1)
		}
		logger.Info("ticker stream open", "symbols", declared)

		go printTickers(ctx, conn, *verbose, &batchCount, logger)
	}

	if len(conns) == 0 {
		logger.Error("nothing to stream: set -symbol or -tickers")
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("stats",
					"klines", klineCount.Load(),
					"ticker_batches", batchCount.Load(),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	for _, conn := range conns {
		conn.Close()
	}
}

func printKlines(ctx context.Context, conn *websocket.Conn, verbose bool, count *atomic.Int64, logger *slog.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("kline stream closed", "error", err)
			}
			return
		}
		count.Add(1)

		if verbose {
			fmt.Printf("[KLINE] %s\n", data)
			continue
		}

		var k model.KlineUpdate
		if err := json.Unmarshal(data, &k); err != nil {
			logger.Warn("unparseable kline frame", "error", err)
			continue
		}
		fmt.Printf("[KLINE] time=%d open=%v high=%v low=%v close=%v volume=%v\n",
			k.Time, k.Open, k.High, k.Low, k.Close, k.Volume)
	}
}

func printTickers(ctx context.Context, conn *websocket.Conn, verbose bool, count *atomic.Int64, logger *slog.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("ticker stream closed", "error", err)
			}
			return
		}
		count.Add(1)

		if verbose {
			fmt.Printf("[TICKER] %s\n", data)
			continue
		}

		var batch model.TickerBatch
		if err := json.Unmarshal(data, &batch); err != nil {
			logger.Warn("unparseable ticker frame", "error", err)
			continue
		}

		symbols := make([]string, 0, len(batch))
		for s := range batch {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)

		for _, s := range symbols {
			e := batch[s]
			fmt.Printf("[TICKER] %s last=%v change=%v (%v%%)\n",
				s, e.LastPrice, e.PriceChange, e.PriceChangePercent)
		}
	}
}
