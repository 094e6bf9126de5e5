// Package oracle supplies unit prices for registered assets at a given tick.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"QuantSentinel/internal/model"
)

// PriceOracle defines the interface for pricing assets. Repeated calls for
// the same (symbol, tick) must agree so a rebalance pass sees one snapshot.
// Prices are in stable-asset smallest units per whole unit of the asset.
type PriceOracle interface {
	PriceOf(ctx context.Context, symbol string, tick model.Tick) (uint64, error)
	PricesOf(ctx context.Context, symbols []string, tick model.Tick) (map[string]uint64, error)
	Name() string
}

// pricesOf samples each symbol once. Every price found is returned; misses
// are joined into the error so callers can degrade only what depends on them.
func pricesOf(ctx context.Context, o PriceOracle, symbols []string, tick model.Tick) (map[string]uint64, error) {
	out := make(map[string]uint64, len(symbols))
	var errs []error
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		p, err := o.PriceOf(ctx, sym, tick)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[sym] = p
	}
	return out, errors.Join(errs...)
}

// StaticOracle returns fixed prices regardless of tick. For tests and dry runs.
type StaticOracle struct {
	Prices map[string]uint64
}

func NewStaticOracle(prices map[string]uint64) *StaticOracle {
	cp := make(map[string]uint64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &StaticOracle{Prices: cp}
}

func (s *StaticOracle) Name() string { return "static" }

func (s *StaticOracle) PriceOf(_ context.Context, symbol string, _ model.Tick) (uint64, error) {
	p, ok := s.Prices[symbol]
	if !ok {
		return 0, fmt.Errorf("price of %s: %w", symbol, model.ErrAssetNotFound)
	}
	return p, nil
}

func (s *StaticOracle) PricesOf(ctx context.Context, symbols []string, tick model.Tick) (map[string]uint64, error) {
	return pricesOf(ctx, s, symbols, tick)
}
