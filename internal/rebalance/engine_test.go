package rebalance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantSentinel/internal/model"
)

const (
	usdt = "ocqUSDT"
	btc  = "ocqBTC"
	dot  = "ocqDOT"
)

func testEngine(t *testing.T, ratio uint64) *Engine {
	t.Helper()
	reg, err := model.NewRegistry([]model.Asset{
		{Symbol: usdt, Multiples: 1_000_000, Stable: true},
		{Symbol: btc, Multiples: 100_000_000},
		{Symbol: dot, Multiples: 10_000_000_000},
	})
	require.NoError(t, err)
	e, err := NewEngine(reg, ratio)
	require.NoError(t, err)
	return e
}

func find(rows []model.Holding, sym string) model.Holding {
	for _, h := range rows {
		if h.Symbol == sym {
			return h
		}
	}
	return model.Holding{}
}

func TestNewEngine_RejectsRatioAboveOne(t *testing.T) {
	reg, err := model.NewRegistry([]model.Asset{{Symbol: usdt, Multiples: 1, Stable: true}})
	require.NoError(t, err)
	_, err = NewEngine(reg, model.RatioScale+1)
	assert.Error(t, err)
}

func TestRebalance_WeightSplit(t *testing.T) {
	e := testEngine(t, 100_000) // 10%
	rows := []model.Holding{
		{Symbol: usdt, Amount: model.NewAmount(100_000_000000), Weight: 500},
		{Symbol: btc, Weight: 300},
		{Symbol: dot, Weight: 200},
	}
	prices := map[string]uint64{
		btc: 30_000_000000, // 30000 USDT
		dot: 5_000000,      // 5 USDT
	}

	res, err := e.Rebalance(rows, prices)
	require.NoError(t, err)

	assert.Equal(t, "10000000000", res.Budget.String())
	require.Len(t, res.Buys, 2)
	assert.Equal(t, btc, res.Buys[0].Symbol, "ascending symbol order")
	assert.Equal(t, "6000000000", res.Buys[0].Share.String())
	assert.Equal(t, "4000000000", res.Buys[1].Share.String())

	shares, err := res.Buys[0].Share.Add(res.Buys[1].Share)
	require.NoError(t, err)
	assert.LessOrEqual(t, shares.Cmp(res.Budget), 0)

	assert.Equal(t, "20000000", find(res.Rows, btc).Amount.String(), "0.2 BTC")
	assert.Equal(t, "8000000000000", find(res.Rows, dot).Amount.String(), "800 DOT")
	assert.Equal(t, "90000000000", find(res.Rows, usdt).Amount.String())
	assert.True(t, res.Withheld.IsZero())
	assert.True(t, res.Dust.IsZero())
	assert.Equal(t, 0, res.ValueBefore.Cmp(res.ValueAfter))

	// input untouched
	assert.Equal(t, "100000000000", rows[0].Amount.String())
}

func TestRebalance_RoundingResidualStaysInStable(t *testing.T) {
	e := testEngine(t, 1_000_000) // deploy everything
	rows := []model.Holding{
		{Symbol: usdt, Amount: model.NewAmount(1_000)},
		{Symbol: btc, Weight: 1},
		{Symbol: dot, Weight: 2},
	}
	prices := map[string]uint64{btc: 700_000_000_001, dot: 3_000_000_007}

	res, err := e.Rebalance(rows, prices)
	require.NoError(t, err)
	assert.Equal(t, "1000", res.Budget.String())
	// shares 333 and 666, one unit withheld
	assert.Equal(t, "1", res.Withheld.String())

	spentPlusKept, err := model.SumAmounts(res.Spent, res.Withheld, res.Dust)
	require.NoError(t, err)
	assert.Equal(t, "1000", spentPlusKept.String())

	stableAfter := find(res.Rows, usdt).Amount
	expected, err := model.NewAmount(1_000).Sub(res.Spent)
	require.NoError(t, err)
	assert.Equal(t, expected.String(), stableAfter.String())
	for _, b := range res.Buys {
		assert.LessOrEqual(t, b.Cost.Cmp(b.Share), 0, b.Symbol)
	}
}

func TestRebalance_ZeroWeightSumIsGuarded(t *testing.T) {
	e := testEngine(t, 100_000)
	rows := []model.Holding{
		{Symbol: usdt, Amount: model.NewAmount(1_000_000)},
		{Symbol: btc, Amount: model.NewAmount(5)},
		{Symbol: dot},
	}
	res, err := e.Rebalance(rows, map[string]uint64{btc: 1, dot: 1})
	require.NoError(t, err)
	assert.True(t, res.ZeroWeights)
	assert.ElementsMatch(t, rows, res.Rows)
	assert.Equal(t, res.Budget, res.Withheld)
	assert.Empty(t, res.Buys)
}

func TestRebalance_NoStableRowCreatesNothing(t *testing.T) {
	e := testEngine(t, 100_000)
	rows := []model.Holding{{Symbol: btc, Weight: 1}}
	res, err := e.Rebalance(rows, map[string]uint64{btc: 10})
	require.NoError(t, err)
	assert.True(t, res.Budget.IsZero())
	assert.Len(t, res.Rows, 1)
}

func TestRebalance_PriceFailures(t *testing.T) {
	e := testEngine(t, 100_000)
	rows := []model.Holding{
		{Symbol: usdt, Amount: model.NewAmount(1_000_000)},
		{Symbol: btc, Weight: 1},
	}
	_, err := e.Rebalance(rows, map[string]uint64{})
	assert.ErrorIs(t, err, model.ErrAssetNotFound)

	_, err = e.Rebalance(rows, map[string]uint64{btc: 0})
	assert.ErrorIs(t, err, model.ErrInvalidPrice)
}

func TestRebalance_OverflowIsReported(t *testing.T) {
	e := testEngine(t, 1_000_000)
	rows := []model.Holding{
		{Symbol: usdt, Amount: model.MustAmount("340282366920938463463374607431768211455")},
		{Symbol: dot, Weight: 1},
	}
	// buying at price 1 with 1e10 multiples cannot fit in 128 bits
	_, err := e.Rebalance(rows, map[string]uint64{dot: 1})
	assert.ErrorIs(t, err, model.ErrOverflow)
}

func TestRebalance_ConservationWithConstantPrices(t *testing.T) {
	e := testEngine(t, 137_531)
	rng := rand.New(rand.NewSource(7))
	prices := map[string]uint64{btc: 29_876_543_219, dot: 4_321_987}
	rows := []model.Holding{
		{Symbol: usdt, Amount: model.NewAmount(987_654_321_123)},
		{Symbol: btc, Weight: 313},
		{Symbol: dot, Weight: 211},
	}

	for i := 0; i < 50; i++ {
		for j := range rows {
			if rows[j].Symbol != usdt {
				rows[j].Weight = uint32(rng.Intn(1_000))
			}
		}

		res, err := e.Rebalance(rows, prices)
		require.NoError(t, err)

		require.LessOrEqual(t, res.ValueAfter.Cmp(res.ValueBefore), 0, "a pass never creates value")
		loss, err := res.ValueBefore.Sub(res.ValueAfter)
		require.NoError(t, err)
		bound := model.NewAmount(uint64(len(res.Buys)))
		require.LessOrEqual(t, loss.Cmp(bound), 0, "loss %s exceeds rounding bound %s", loss, bound)

		rows = res.Rows
	}
}

func TestValuation(t *testing.T) {
	e := testEngine(t, 0)
	rows := []model.Holding{
		{Symbol: usdt, Amount: model.NewAmount(1_000000)},
		{Symbol: btc, Amount: model.NewAmount(50_000_000)}, // 0.5 BTC
	}
	v, err := e.Valuation(rows, map[string]uint64{btc: 20_000_000000})
	require.NoError(t, err)
	assert.Equal(t, "10001000000", v.String())
}
