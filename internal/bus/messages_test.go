package bus

import (
	"encoding/json"
	"testing"

	"github.com/viewingchart/market-gateway/internal/model"
)

// The bus payloads are a wire contract shared with other gateway instances;
// field names must match the channel format exactly.
func TestKlineMessageWireShape(t *testing.T) {
	msg := KlineMessage{
		Symbol:   "btcusdt",
		Interval: "1m",
		Data: model.KlineUpdate{
			Time:   1700000000,
			Open:   27000.5,
			High:   27100,
			Low:    26950.25,
			Close:  27050,
			Volume: 123.45,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"symbol":"btcusdt","interval":"1m","data":{"time":1700000000,"open":27000.5,"high":27100,"low":26950.25,"close":27050,"volume":123.45}}`
	if string(data) != want {
		t.Errorf("kline wire = %s, want %s", data, want)
	}
}

func TestCommandWireShapes(t *testing.T) {
	subData, err := json.Marshal(SubscribeCommand{Stream: "btcusdt@kline_1m"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(subData), `{"stream":"btcusdt@kline_1m"}`; got != want {
		t.Errorf("subscribe wire = %s, want %s", got, want)
	}

	tickData, err := json.Marshal(TickerSubscribeCommand{Symbols: []string{"ADAUSDT"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(tickData), `{"symbols":["ADAUSDT"]}`; got != want {
		t.Errorf("ticker subscribe wire = %s, want %s", got, want)
	}
}
