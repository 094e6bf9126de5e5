// Package rebalance converts a fraction of an account's stable holding into
// its volatile assets by weight.
//
// Every division floors. A conversion is charged ceil(buy*price/multiples), never
// more than its share, and whatever is not charged stays in the stable row, so
// a pass never creates value and only delays what rounding could not convert.
package rebalance

import (
	"fmt"

	"QuantSentinel/internal/model"
)

// Buy is the conversion applied to one volatile asset.
type Buy struct {
	Symbol string
	Weight uint32
	Price  uint64
	Share  model.Amount // stable units allotted by weight
	Bought model.Amount // volatile smallest units credited
	Cost   model.Amount // stable units actually debited
}

// Result describes one account's pass.
type Result struct {
	Rows []model.Holding

	Budget   model.Amount
	Spent    model.Amount
	Withheld model.Amount // budget - Σ share
	Dust     model.Amount // Σ (share - cost)
	Buys     []Buy

	// ZeroWeights is set when no volatile row carries weight; nothing moves.
	ZeroWeights bool

	ValueBefore model.Amount
	ValueAfter  model.Amount
}

// Engine holds the per-instance rebalancing parameters.
type Engine struct {
	registry *model.Registry
	ratio    uint64
}

// NewEngine creates an engine deploying ratioPPM parts-per-million of the
// stable holding per pass.
func NewEngine(registry *model.Registry, ratioPPM uint64) (*Engine, error) {
	if ratioPPM > model.RatioScale {
		return nil, fmt.Errorf("investment ratio %d exceeds %d", ratioPPM, model.RatioScale)
	}
	return &Engine{registry: registry, ratio: ratioPPM}, nil
}

// Ratio returns the investment ratio in parts-per-million.
func (e *Engine) Ratio() uint64 { return e.ratio }

// Rebalance computes and applies one pass over rows. rows is not modified;
// the updated rows are returned in Result.Rows in ascending symbol order.
func (e *Engine) Rebalance(rows []model.Holding, prices map[string]uint64) (Result, error) {
	stableSym := e.registry.Stable().Symbol
	work := make(map[string]model.Holding, len(rows)+1)
	order := make([]string, 0, len(rows)+1)
	for _, h := range rows {
		if _, err := e.registry.Lookup(h.Symbol); err != nil {
			return Result{}, err
		}
		work[h.Symbol] = h
	}
	for _, a := range e.registry.All() {
		if _, ok := work[a.Symbol]; ok {
			order = append(order, a.Symbol)
		}
	}
	stable, hasStable := work[stableSym]

	before, err := e.value(work, prices)
	if err != nil {
		return Result{}, err
	}

	var weightSum uint64
	for _, sym := range order {
		if sym != stableSym {
			weightSum += uint64(work[sym].Weight)
		}
	}

	budget, err := stable.Amount.MulDiv(e.ratio, model.RatioScale)
	if err != nil {
		return Result{}, fmt.Errorf("budget: %w", err)
	}
	res := Result{Budget: budget, ValueBefore: before}

	if weightSum == 0 {
		res.ZeroWeights = true
		res.Withheld = budget
		res.ValueAfter = before
		res.Rows = collect(work, order)
		return res, nil
	}

	var allotted model.Amount
	for _, sym := range order {
		if sym == stableSym {
			continue
		}
		h := work[sym]
		asset, _ := e.registry.Lookup(sym)
		share, err := budget.MulDiv(uint64(h.Weight), weightSum)
		if err != nil {
			return Result{}, fmt.Errorf("share %s: %w", sym, err)
		}
		if allotted, err = allotted.Add(share); err != nil {
			return Result{}, err
		}
		if share.IsZero() {
			continue
		}
		price, err := priceOf(prices, sym)
		if err != nil {
			return Result{}, err
		}
		bought, err := share.MulDiv(asset.Multiples, price)
		if err != nil {
			return Result{}, fmt.Errorf("buy %s: %w", sym, err)
		}
		cost, err := bought.MulDivCeil(price, asset.Multiples)
		if err != nil {
			return Result{}, fmt.Errorf("cost %s: %w", sym, err)
		}
		if h.Amount, err = h.Amount.Add(bought); err != nil {
			return Result{}, fmt.Errorf("credit %s: %w", sym, err)
		}
		work[sym] = h

		dust, err := share.Sub(cost)
		if err != nil {
			return Result{}, fmt.Errorf("dust %s: %w", sym, err)
		}
		if res.Dust, err = res.Dust.Add(dust); err != nil {
			return Result{}, err
		}
		if res.Spent, err = res.Spent.Add(cost); err != nil {
			return Result{}, err
		}
		res.Buys = append(res.Buys, Buy{
			Symbol: sym,
			Weight: h.Weight,
			Price:  price,
			Share:  share,
			Bought: bought,
			Cost:   cost,
		})
	}

	if res.Withheld, err = budget.Sub(allotted); err != nil {
		return Result{}, fmt.Errorf("withheld: %w", err)
	}
	// Spent <= allotted <= budget <= stable, so this cannot underflow.
	if stable.Amount, err = stable.Amount.Sub(res.Spent); err != nil {
		return Result{}, fmt.Errorf("debit stable: %w", err)
	}
	if hasStable {
		work[stableSym] = stable
	}

	if res.ValueAfter, err = e.value(work, prices); err != nil {
		return Result{}, err
	}
	res.Rows = collect(work, order)
	return res, nil
}

// Valuation is Σ price*amount/multiples over volatile rows plus the stable
// amount, in stable smallest units.
func (e *Engine) Valuation(rows []model.Holding, prices map[string]uint64) (model.Amount, error) {
	work := make(map[string]model.Holding, len(rows))
	for _, h := range rows {
		if _, err := e.registry.Lookup(h.Symbol); err != nil {
			return model.Amount{}, err
		}
		work[h.Symbol] = h
	}
	return e.value(work, prices)
}

func (e *Engine) value(work map[string]model.Holding, prices map[string]uint64) (model.Amount, error) {
	var total model.Amount
	for sym, h := range work {
		asset, _ := e.registry.Lookup(sym)
		v := h.Amount
		if !asset.Stable {
			if h.Amount.IsZero() {
				continue
			}
			price, err := priceOf(prices, sym)
			if err != nil {
				return model.Amount{}, err
			}
			if v, err = h.Amount.MulDiv(price, asset.Multiples); err != nil {
				return model.Amount{}, fmt.Errorf("value %s: %w", sym, err)
			}
		}
		var err error
		if total, err = total.Add(v); err != nil {
			return model.Amount{}, fmt.Errorf("total value: %w", err)
		}
	}
	return total, nil
}

func priceOf(prices map[string]uint64, sym string) (uint64, error) {
	p, ok := prices[sym]
	if !ok {
		return 0, fmt.Errorf("no price for %s: %w", sym, model.ErrAssetNotFound)
	}
	if p == 0 {
		return 0, fmt.Errorf("zero price for %s: %w", sym, model.ErrInvalidPrice)
	}
	return p, nil
}

func collect(work map[string]model.Holding, order []string) []model.Holding {
	out := make([]model.Holding, 0, len(order))
	for _, sym := range order {
		out = append(out, work[sym])
	}
	return out
}
