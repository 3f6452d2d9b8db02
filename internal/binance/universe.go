package binance

import (
	"context"
	"fmt"

	"github.com/viewingchart/market-gateway/internal/model"
)

// statusTrading is the only symbol status carried into the universe.
const statusTrading = "TRADING"

// SpotUniverse fetches the spot symbol universe, filtered to TRADING.
func (c *Client) SpotUniverse(ctx context.Context) ([]model.Symbol, error) {
	var symbols []model.Symbol

	err := c.withRetry(ctx, "spot exchange info", func() error {
		info, err := c.spot.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return err
		}

		symbols = symbols[:0]
		for _, s := range info.Symbols {
			if s.Status != statusTrading {
				continue
			}
			symbols = append(symbols, model.Symbol{
				Symbol:     s.Symbol,
				BaseAsset:  s.BaseAsset,
				QuoteAsset: s.QuoteAsset,
				Source:     model.SourceSpot,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch spot universe: %w", err)
	}

	return symbols, nil
}

// FuturesUniverse fetches the derivatives symbol universe, filtered to
// TRADING.
func (c *Client) FuturesUniverse(ctx context.Context) ([]model.Symbol, error) {
	var symbols []model.Symbol

	err := c.withRetry(ctx, "futures exchange info", func() error {
		info, err := c.futures.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return err
		}

		symbols = symbols[:0]
		for _, s := range info.Symbols {
			if s.Status != statusTrading {
				continue
			}
			symbols = append(symbols, model.Symbol{
				Symbol:     s.Symbol,
				BaseAsset:  s.BaseAsset,
				QuoteAsset: s.QuoteAsset,
				Source:     model.SourceDeriv,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch futures universe: %w", err)
	}

	return symbols, nil
}
