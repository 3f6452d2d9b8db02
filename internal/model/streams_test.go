package model

import "testing"

func TestKlineStream(t *testing.T) {
	tests := []struct {
		symbol   string
		interval string
		want     string
	}{
		{"BTCUSDT", "1m", "btcusdt@kline_1m"},
		{"btcusdt", "1m", "btcusdt@kline_1m"},
		{"XAUUSDT", "1h", "xauusdt@kline_1h"},
		{"ethusdt", "1M", "ethusdt@kline_1M"},
	}

	for _, tt := range tests {
		if got := KlineStream(tt.symbol, tt.interval); got != tt.want {
			t.Errorf("KlineStream(%q, %q) = %q, want %q", tt.symbol, tt.interval, got, tt.want)
		}
	}
}

func TestStreamSymbol(t *testing.T) {
	tests := []struct {
		stream string
		want   string
	}{
		{"btcusdt@kline_1m", "BTCUSDT"},
		{"xauusdt@kline_1h", "XAUUSDT"},
		{TickerStream, ""},
		{"@kline_1m", ""},
		{"garbage", ""},
	}

	for _, tt := range tests {
		if got := StreamSymbol(tt.stream); got != tt.want {
			t.Errorf("StreamSymbol(%q) = %q, want %q", tt.stream, got, tt.want)
		}
	}
}

func TestStreamInterval(t *testing.T) {
	if got := StreamInterval("btcusdt@kline_15m"); got != "15m" {
		t.Errorf("StreamInterval = %q, want %q", got, "15m")
	}
	if got := StreamInterval(TickerStream); got != "" {
		t.Errorf("StreamInterval(ticker) = %q, want empty", got)
	}
}

func TestValidInterval(t *testing.T) {
	for _, iv := range KlineIntervals {
		if !ValidInterval(iv) {
			t.Errorf("ValidInterval(%q) = false, want true", iv)
		}
	}

	for _, iv := range []string{"", "2m", "1y", "60", "1D"} {
		if ValidInterval(iv) {
			t.Errorf("ValidInterval(%q) = true, want false", iv)
		}
	}
}
