package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_AddOverflowsPast128Bits(t *testing.T) {
	maxU128 := MustAmount("340282366920938463463374607431768211455")
	_, err := maxU128.Add(NewAmount(1))
	assert.ErrorIs(t, err, ErrOverflow)

	sum, err := maxU128.Add(NewAmount(0))
	require.NoError(t, err)
	assert.Equal(t, maxU128.String(), sum.String())
}

func TestAmount_SubUnderflow(t *testing.T) {
	_, err := NewAmount(5).Sub(NewAmount(6))
	assert.ErrorIs(t, err, ErrUnderflow)

	d, err := NewAmount(6).Sub(NewAmount(5))
	require.NoError(t, err)
	assert.Equal(t, "1", d.String())
}

func TestAmount_MulDivFloorAndCeil(t *testing.T) {
	a := NewAmount(10)
	floor, err := a.MulDiv(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "3", floor.String())

	ceil, err := a.MulDivCeil(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "4", ceil.String())

	exact, err := a.MulDivCeil(3, 3)
	require.NoError(t, err)
	assert.Equal(t, "10", exact.String())

	_, err = a.MulDiv(1, 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestAmount_MulDivWideIntermediate(t *testing.T) {
	// The product exceeds 128 bits but the quotient does not.
	big := MustAmount("340282366920938463463374607431768211455")
	q, err := big.MulDiv(1_000_000, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, big.String(), q.String())

	_, err = big.MulDiv(2, 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestAmount_ParseRejectsWide(t *testing.T) {
	_, err := ParseAmount("340282366920938463463374607431768211456")
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = ParseAmount("12x")
	assert.Error(t, err)
}

func TestAmount_JSONIsDecimalString(t *testing.T) {
	h := Holding{Symbol: "ocqUSDT", Amount: MustAmount("100000000000"), Weight: 500}
	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"amount":"100000000000"`)

	var back Holding
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0, back.Amount.Cmp(h.Amount))
}

func TestRegistry_Validation(t *testing.T) {
	_, err := NewRegistry([]Asset{{Symbol: "BTC", Multiples: 100_000_000}})
	assert.Error(t, err, "missing stable asset")

	_, err = NewRegistry([]Asset{
		{Symbol: "USDT", Multiples: 1_000_000, Stable: true},
		{Symbol: "USDT", Multiples: 1_000_000},
	})
	assert.ErrorIs(t, err, ErrAssetExists)

	_, err = NewRegistry([]Asset{{Symbol: "USDT", Multiples: 0, Stable: true}})
	assert.Error(t, err)

	r, err := NewRegistry([]Asset{
		{Symbol: "ocqUSDT", Multiples: 1_000_000, Stable: true},
		{Symbol: "ocqDOT", Multiples: 10_000_000_000},
		{Symbol: "ocqBTC", Multiples: 100_000_000},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ocqBTC", "ocqDOT"}, r.VolatileSymbols())
	assert.Equal(t, "ocqUSDT", r.Stable().Symbol)

	_, err = r.Lookup("ocqETH")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}
