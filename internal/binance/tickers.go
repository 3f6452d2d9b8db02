package binance

import (
	"context"
	"fmt"

	"github.com/viewingchart/market-gateway/internal/model"
)

// SpotVolumes fetches 24h quote volumes for every spot symbol. Used to rank
// the popular list.
func (c *Client) SpotVolumes(ctx context.Context) ([]model.SymbolVolume, error) {
	var out []model.SymbolVolume

	err := c.withRetry(ctx, "spot 24h volumes", func() error {
		stats, err := c.spot.NewListPriceChangeStatsService().Do(ctx)
		if err != nil {
			return err
		}

		out = out[:0]
		for _, s := range stats {
			qv, err := parseFloat("quoteVolume", s.QuoteVolume)
			if err != nil {
				return err
			}
			out = append(out, model.SymbolVolume{
				Symbol:      s.Symbol,
				QuoteVolume: qv,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch spot volumes: %w", err)
	}

	return out, nil
}

// Ticker24h fetches 24h price statistics for the given symbols, already
// split by venue. The spot endpoint takes the batch directly; the futures
// endpoint has no batch parameter, so the full list is fetched and filtered.
func (c *Client) Ticker24h(ctx context.Context, spotSymbols, futuresSymbols []string) (model.TickerBatch, error) {
	batch := make(model.TickerBatch, len(spotSymbols)+len(futuresSymbols))

	if len(spotSymbols) > 0 {
		err := c.withRetry(ctx, "spot 24h tickers", func() error {
			stats, err := c.spot.NewListPriceChangeStatsService().
				Symbols(spotSymbols).
				Do(ctx)
			if err != nil {
				return err
			}

			for _, s := range stats {
				if err := addTickerEntry(batch, s.Symbol, s.LastPrice, s.PriceChange, s.PriceChangePercent); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("fetch spot tickers: %w", err)
		}
	}

	if len(futuresSymbols) > 0 {
		wanted := make(map[string]struct{}, len(futuresSymbols))
		for _, s := range futuresSymbols {
			wanted[s] = struct{}{}
		}

		err := c.withRetry(ctx, "futures 24h tickers", func() error {
			stats, err := c.futures.NewListPriceChangeStatsService().Do(ctx)
			if err != nil {
				return err
			}

			for _, s := range stats {
				if _, ok := wanted[s.Symbol]; !ok {
					continue
				}
				if err := addTickerEntry(batch, s.Symbol, s.LastPrice, s.PriceChange, s.PriceChangePercent); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("fetch futures tickers: %w", err)
		}
	}

	return batch, nil
}

func addTickerEntry(batch model.TickerBatch, symbol, lastPrice, priceChange, priceChangePercent string) error {
	last, err := parseFloat("lastPrice", lastPrice)
	if err != nil {
		return err
	}
	change, err := parseFloat("priceChange", priceChange)
	if err != nil {
		return err
	}
	pct, err := parseFloat("priceChangePercent", priceChangePercent)
	if err != nil {
		return err
	}

	batch[symbol] = model.TickerEntry{
		LastPrice:          last,
		PriceChange:        change,
		PriceChangePercent: pct,
	}
	return nil
}
