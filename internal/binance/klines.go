package binance

import (
	"context"
	"fmt"

	"github.com/viewingchart/market-gateway/internal/model"
)

// Klines fetches historical candles for one symbol. DERIV routes to the
// futures endpoint; anything else goes to spot. Bucket open times come back
// in whole seconds and the string numerics as float64.
func (c *Client) Klines(ctx context.Context, venue model.Venue, symbol, interval string, limit int) ([]model.KlineUpdate, error) {
	if venue == model.VenueDeriv {
		return c.futuresKlines(ctx, symbol, interval, limit)
	}
	return c.spotKlines(ctx, symbol, interval, limit)
}

func (c *Client) spotKlines(ctx context.Context, symbol, interval string, limit int) ([]model.KlineUpdate, error) {
	var out []model.KlineUpdate

	err := c.withRetry(ctx, "spot klines", func() error {
		rows, err := c.spot.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return err
		}

		out = out[:0]
		for _, k := range rows {
			u, err := mapKline(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch spot klines %s %s: %w", symbol, interval, err)
	}

	return out, nil
}

func (c *Client) futuresKlines(ctx context.Context, symbol, interval string, limit int) ([]model.KlineUpdate, error) {
	var out []model.KlineUpdate

	err := c.withRetry(ctx, "futures klines", func() error {
		rows, err := c.futures.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return err
		}

		out = out[:0]
		for _, k := range rows {
			u, err := mapKline(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch futures klines %s %s: %w", symbol, interval, err)
	}

	return out, nil
}

func mapKline(openTimeMS int64, open, high, low, close, volume string) (model.KlineUpdate, error) {
	var (
		u   model.KlineUpdate
		err error
	)

	u.Time = openTimeMS / 1000
	if u.Open, err = parseFloat("open", open); err != nil {
		return u, err
	}
	if u.High, err = parseFloat("high", high); err != nil {
		return u, err
	}
	if u.Low, err = parseFloat("low", low); err != nil {
		return u, err
	}
	if u.Close, err = parseFloat("close", close); err != nil {
		return u, err
	}
	if u.Volume, err = parseFloat("volume", volume); err != nil {
		return u, err
	}

	return u, nil
}
