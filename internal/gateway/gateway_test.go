package gateway

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/viewingchart/market-gateway/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Stop must be safe on a gateway that never started; main defers it
// unconditionally.
func TestStopBeforeStart(t *testing.T) {
	gw := New(config.Default(), testLogger())

	if err := gw.Stop(context.Background()); err != nil {
		t.Errorf("Stop() = %v, want nil", err)
	}
}

func TestStartFailsWhenBusUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Bus.URL = "nats://127.0.0.1:1" // nothing listens on port 1

	gw := New(cfg, testLogger())

	if err := gw.Start(context.Background()); err == nil {
		t.Fatal("Start() = nil, want error")
	}

	// Cleanup after the failed start must not panic or error.
	if err := gw.Stop(context.Background()); err != nil {
		t.Errorf("Stop() after failed Start = %v, want nil", err)
	}
}
