package upstream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/viewingchart/market-gateway/internal/bus"
	"github.com/viewingchart/market-gateway/internal/model"
)

// normalizeKline converts a venue kline payload into the bus message shape:
// lowercase symbol, millisecond open time truncated to whole seconds, and
// string numerics parsed to float64.
func normalizeKline(data []byte) (bus.KlineMessage, error) {
	var ev klineEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return bus.KlineMessage{}, fmt.Errorf("decode kline payload: %w", err)
	}

	msg := bus.KlineMessage{
		Symbol:   strings.ToLower(ev.Symbol),
		Interval: ev.Kline.Interval,
	}
	msg.Data.Time = ev.Kline.OpenTime / 1000

	var err error
	if msg.Data.Open, err = parseFloat("open", ev.Kline.Open); err != nil {
		return bus.KlineMessage{}, err
	}
	if msg.Data.High, err = parseFloat("high", ev.Kline.High); err != nil {
		return bus.KlineMessage{}, err
	}
	if msg.Data.Low, err = parseFloat("low", ev.Kline.Low); err != nil {
		return bus.KlineMessage{}, err
	}
	if msg.Data.Close, err = parseFloat("close", ev.Kline.Close); err != nil {
		return bus.KlineMessage{}, err
	}
	if msg.Data.Volume, err = parseFloat("volume", ev.Kline.Volume); err != nil {
		return bus.KlineMessage{}, err
	}

	return msg, nil
}

// filterTickers rebuilds the firehose array as a batch holding only watched
// symbols. An empty batch means nothing watched moved this frame.
func filterTickers(data []byte, watch WatchFilter) (model.TickerBatch, error) {
	var items []tickerWire
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode ticker payload: %w", err)
	}

	batch := make(model.TickerBatch)
	for _, item := range items {
		if !watch.Contains(item.Symbol) {
			continue
		}

		var (
			entry model.TickerEntry
			err   error
		)
		if entry.LastPrice, err = parseFloat("lastPrice", item.LastPrice); err != nil {
			return nil, err
		}
		if entry.PriceChange, err = parseFloat("priceChange", item.PriceChange); err != nil {
			return nil, err
		}
		if entry.PriceChangePercent, err = parseFloat("priceChangePercent", item.PriceChangePercent); err != nil {
			return nil, err
		}
		batch[item.Symbol] = entry
	}

	return batch, nil
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return v, nil
}
