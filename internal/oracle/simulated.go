package oracle

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/bits"
	"sync"

	"lukechampine.com/blake3"

	"QuantSentinel/internal/model"
)

// MaxDeviationPermille bounds the simulated move around the base price.
const MaxDeviationPermille = 99

// SimulatedOracle perturbs fixed base prices by a deterministic amount derived
// from blake3(instance || tick || symbol), so the same tick always yields the
// same price and different ticks wander within ±9.9%.
type SimulatedOracle struct {
	mu       sync.RWMutex
	instance string
	base     map[string]uint64
}

// NewSimulatedOracle creates an oracle keyed to instance.
func NewSimulatedOracle(instance string) *SimulatedOracle {
	return &SimulatedOracle{instance: instance, base: make(map[string]uint64)}
}

func (o *SimulatedOracle) Name() string { return "simulated" }

// Register sets symbol's base price once.
func (o *SimulatedOracle) Register(symbol string, base uint64) error {
	if base == 0 {
		return fmt.Errorf("register %s: %w", symbol, model.ErrInvalidPrice)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.base[symbol]; ok {
		return fmt.Errorf("register %s: %w", symbol, model.ErrAssetExists)
	}
	o.base[symbol] = base
	return nil
}

func (o *SimulatedOracle) PriceOf(_ context.Context, symbol string, tick model.Tick) (uint64, error) {
	o.mu.RLock()
	base, ok := o.base[symbol]
	o.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("price of %s: %w", symbol, model.ErrAssetNotFound)
	}

	d := o.deviation(symbol, tick)
	hi, lo := bits.Mul64(base, uint64(1000+d))
	if hi >= 1000 {
		return 0, fmt.Errorf("price of %s: %w", symbol, model.ErrOverflow)
	}
	p, _ := bits.Div64(hi, lo, 1000)
	if p == 0 {
		p = 1
	}
	return p, nil
}

func (o *SimulatedOracle) PricesOf(ctx context.Context, symbols []string, tick model.Tick) (map[string]uint64, error) {
	return pricesOf(ctx, o, symbols, tick)
}

// deviation returns a per-mille offset in [-99, 99].
func (o *SimulatedOracle) deviation(symbol string, tick model.Tick) int64 {
	buf := make([]byte, 0, len(o.instance)+8+len(symbol))
	buf = append(buf, o.instance...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(tick))
	buf = append(buf, symbol...)
	sum := blake3.Sum256(buf)
	r := binary.LittleEndian.Uint64(sum[:8]) % (2*MaxDeviationPermille + 1)
	return int64(r) - MaxDeviationPermille
}
