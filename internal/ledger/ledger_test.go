package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantSentinel/internal/model"
)

func testRegistry(t *testing.T) *model.Registry {
	t.Helper()
	r, err := model.NewRegistry([]model.Asset{
		{Symbol: "ocqUSDT", Multiples: 1_000_000, Stable: true},
		{Symbol: "ocqBTC", Multiples: 100_000_000},
		{Symbol: "ocqDOT", Multiples: 10_000_000_000},
	})
	require.NoError(t, err)
	return r
}

func TestDeposit_CreatesRowLazily(t *testing.T) {
	l := New(testRegistry(t))
	assert.Empty(t, l.Holdings("bob"))

	require.NoError(t, l.Deposit("bob", "ocqUSDT", model.NewAmount(500)))
	require.NoError(t, l.Deposit("bob", "ocqUSDT", model.NewAmount(250)))

	rows := l.Holdings("bob")
	require.Len(t, rows, 1)
	assert.Equal(t, "750", rows[0].Amount.String())
	assert.Equal(t, []model.Account{"bob"}, l.Accounts())
}

func TestDeposit_UnknownAsset(t *testing.T) {
	l := New(testRegistry(t))
	err := l.Deposit("bob", "ocqETH", model.NewAmount(1))
	assert.ErrorIs(t, err, model.ErrAssetNotFound)
	assert.Empty(t, l.Accounts())
}

func TestDeposit_Overflow(t *testing.T) {
	l := New(testRegistry(t))
	require.NoError(t, l.Deposit("bob", "ocqBTC", model.MustAmount("340282366920938463463374607431768211455")))
	err := l.Deposit("bob", "ocqBTC", model.NewAmount(1))
	assert.ErrorIs(t, err, model.ErrOverflow)
}

func TestWithdraw(t *testing.T) {
	l := New(testRegistry(t))
	require.NoError(t, l.Deposit("bob", "ocqBTC", model.NewAmount(100)))

	err := l.Withdraw("bob", "ocqBTC", model.NewAmount(101))
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	require.NoError(t, l.Withdraw("bob", "ocqBTC", model.NewAmount(100)))
	rows := l.Holdings("bob")
	require.Len(t, rows, 1, "a zero amount keeps the row")
	assert.True(t, rows[0].Amount.IsZero())

	err = l.Withdraw("carol", "ocqBTC", model.NewAmount(1))
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)
	assert.Empty(t, l.Holdings("carol"))
}

func TestSetWeights_AllOrNothing(t *testing.T) {
	l := New(testRegistry(t))
	err := l.SetWeights("bob", []model.WeightChange{{Symbol: "ocqBTC", Weight: 3}, {Symbol: "nope", Weight: 1}})
	assert.ErrorIs(t, err, model.ErrAssetNotFound)
	assert.Empty(t, l.Holdings("bob"))

	require.NoError(t, l.SetWeights("bob", []model.WeightChange{{Symbol: "ocqDOT", Weight: 2}, {Symbol: "ocqBTC", Weight: 3}}))
	rows := l.Holdings("bob")
	require.Len(t, rows, 2)
	assert.Equal(t, "ocqBTC", rows[0].Symbol)
	assert.Equal(t, uint32(3), rows[0].Weight)
	assert.True(t, rows[0].Amount.IsZero())
}

func TestSnapshotRestore(t *testing.T) {
	reg := testRegistry(t)
	l := New(reg)
	require.NoError(t, l.Deposit("bob", "ocqUSDT", model.NewAmount(42)))
	require.NoError(t, l.SetWeights("amy", []model.WeightChange{{Symbol: "ocqBTC", Weight: 7}}))

	snap := l.Snapshot()
	other := New(reg)
	require.NoError(t, other.Restore(snap))
	assert.Equal(t, l.Holdings("bob"), other.Holdings("bob"))
	assert.Equal(t, l.Holdings("amy"), other.Holdings("amy"))

	bad := map[model.Account][]model.Holding{"x": {{Symbol: "ghost"}}}
	assert.ErrorIs(t, other.Restore(bad), model.ErrAssetNotFound)
}
