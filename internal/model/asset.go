package model

import (
	"fmt"
	"math/bits"
	"sort"
)

// Account identifies a participant. The format is opaque to the engine.
type Account string

// Tick is one step of the logical scheduling clock.
type Tick uint64

// Add returns t+n, or ErrOverflow when the sum does not fit in a Tick.
func (t Tick) Add(n uint64) (Tick, error) {
	sum, carry := bits.Add64(uint64(t), n, 0)
	if carry != 0 {
		return 0, fmt.Errorf("tick %d + %d: %w", t, n, ErrOverflow)
	}
	return Tick(sum), nil
}

// Asset is a registered symbol and its unit scaling.
type Asset struct {
	Symbol string `json:"symbol"`
	// Multiples is the number of smallest units per whole unit,
	// e.g. 100_000_000 for an 8-decimal asset.
	Multiples uint64 `json:"multiples"`
	Stable    bool   `json:"stable"`
}

// Holding is one (account, asset) row of the ledger.
type Holding struct {
	Symbol string `json:"symbol"`
	Amount Amount `json:"amount"`
	// Weight only matters for volatile assets, relative to the other
	// volatile weights of the same account.
	Weight uint32 `json:"weight"`
}

// Registry is the immutable set of assets known to an instance.
type Registry struct {
	assets map[string]Asset
	stable string
}

// NewRegistry validates and indexes assets. Exactly one must be stable.
func NewRegistry(assets []Asset) (*Registry, error) {
	r := &Registry{assets: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		if a.Symbol == "" {
			return nil, fmt.Errorf("asset missing symbol")
		}
		if a.Multiples == 0 {
			return nil, fmt.Errorf("asset %s: multiples must be positive", a.Symbol)
		}
		if _, ok := r.assets[a.Symbol]; ok {
			return nil, fmt.Errorf("asset %s: %w", a.Symbol, ErrAssetExists)
		}
		if a.Stable {
			if r.stable != "" {
				return nil, fmt.Errorf("asset %s: stable asset already set to %s", a.Symbol, r.stable)
			}
			r.stable = a.Symbol
		}
		r.assets[a.Symbol] = a
	}
	if r.stable == "" {
		return nil, fmt.Errorf("no stable asset registered")
	}
	return r, nil
}

// Lookup returns the asset for symbol or ErrAssetNotFound.
func (r *Registry) Lookup(symbol string) (Asset, error) {
	a, ok := r.assets[symbol]
	if !ok {
		return Asset{}, fmt.Errorf("%s: %w", symbol, ErrAssetNotFound)
	}
	return a, nil
}

// Stable returns the stable asset.
func (r *Registry) Stable() Asset { return r.assets[r.stable] }

// Volatile lists the volatile assets in ascending symbol order.
func (r *Registry) Volatile() []Asset {
	out := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		if !a.Stable {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// VolatileSymbols is Volatile reduced to symbols.
func (r *Registry) VolatileSymbols() []string {
	vs := r.Volatile()
	out := make([]string, len(vs))
	for i, a := range vs {
		out[i] = a.Symbol
	}
	return out
}

// All lists every asset in ascending symbol order.
func (r *Registry) All() []Asset {
	out := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
