package reservation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantSentinel/internal/deferred"
	"QuantSentinel/internal/model"
)

const alice model.Account = "alice"

func newTestManager(balance, cost uint64) (*Manager, *MemoryBank, *deferred.Queue) {
	bank := NewMemoryBank(map[model.Account]uint64{alice: balance})
	q := deferred.NewQueue()
	return NewManager(bank, q, cost), bank, q
}

func TestReserve_InsufficientFunds(t *testing.T) {
	m, bank, _ := newTestManager(100, 10)
	_, err := m.Reserve(alice, 101, 10, 1)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	assert.Equal(t, uint64(100), bank.Balance(alice))

	_, err = m.HealthOf(alice, 1)
	assert.ErrorIs(t, err, model.ErrReservationMissing)
}

func TestReserve_RejectsEmptyRequest(t *testing.T) {
	m, _, _ := newTestManager(100, 10)
	_, err := m.Reserve(alice, 0, 10, 1)
	assert.ErrorIs(t, err, model.ErrInvalidReservation)
	_, err = m.Reserve(alice, 10, 0, 1)
	assert.ErrorIs(t, err, model.ErrInvalidReservation)
}

func TestReserve_ReplaceRefundsRemainder(t *testing.T) {
	m, bank, _ := newTestManager(1_000, 30)

	first, err := m.Reserve(alice, 400, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), bank.Balance(alice))

	_, err = m.SpendForDeferredCall(alice, "program", model.Command{Kind: model.CmdAct}, 2, 1)
	require.NoError(t, err)

	second, err := m.Reserve(alice, 500, 50, 5)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, model.Tick(55), second.ValidUntil)

	// 1000 - 30 spent - 500 held = 470
	assert.Equal(t, uint64(470), bank.Balance(alice))
	assert.Len(t, m.Snapshot(), 1)

	r, err := m.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), r.Remaining)

	held := bank.Balance(alice) + r.Remaining
	assert.Equal(t, uint64(1_000-30), held, "only the spent call leaves the account")
}

func TestReserve_ReplaceMayUseRefundedRemainder(t *testing.T) {
	m, bank, _ := newTestManager(1_000, 10)
	_, err := m.Reserve(alice, 1_000, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bank.Balance(alice))

	_, err = m.Reserve(alice, 900, 100, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bank.Balance(alice))
}

func TestReserve_ValidityOverflowLeavesBankUntouched(t *testing.T) {
	m, bank, _ := newTestManager(100_000_000, 10)
	_, err := m.Reserve(alice, 50_000_000, math.MaxUint64, 10)
	assert.ErrorIs(t, err, model.ErrOverflow)
	assert.Equal(t, uint64(100_000_000), bank.Balance(alice))
	assert.Empty(t, m.Accounts())

	h, err := m.Reserve(alice, 50_000_000, math.MaxUint64-10, 10)
	require.NoError(t, err)
	assert.Equal(t, model.Tick(math.MaxUint64), h.ValidUntil)
}

func TestReserve_ReplaceNearMaxBalance(t *testing.T) {
	m, bank, _ := newTestManager(100, 10)
	_, err := m.Reserve(alice, 100, 10, 1)
	require.NoError(t, err)
	require.NoError(t, bank.Credit(alice, math.MaxUint64))

	// Balance plus the 100 refund exceeds 64 bits; only the extra 100 is debited.
	_, err = m.Reserve(alice, 200, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-100), bank.Balance(alice))

	r, err := m.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), r.Remaining)
}

func TestSpendForDeferredCall_Schedules(t *testing.T) {
	m, _, q := newTestManager(1_000, 10)
	_, err := m.Reserve(alice, 100, 20, 3)
	require.NoError(t, err)

	ticket, err := m.SpendForDeferredCall(alice, "program", model.Command{Kind: model.CmdAct, From: "program"}, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, model.Tick(7), ticket.At)
	assert.Equal(t, uint64(90), ticket.Remaining)

	calls := q.Due(7)
	require.Len(t, calls, 1)
	assert.Equal(t, ticket.ID, calls[0].Ticket)
	assert.Equal(t, model.CmdAct, calls[0].Payload.Kind)
	assert.Equal(t, model.Account("program"), calls[0].Target)
}

func TestSpendForDeferredCall_Failures(t *testing.T) {
	m, _, q := newTestManager(1_000, 40)
	act := model.Command{Kind: model.CmdAct}

	_, err := m.SpendForDeferredCall(alice, "program", act, 1, 0)
	assert.ErrorIs(t, err, model.ErrReservationMissing)

	_, err = m.Reserve(alice, 50, 10, 0)
	require.NoError(t, err)

	_, err = m.SpendForDeferredCall(alice, "program", act, 1, 11)
	assert.ErrorIs(t, err, model.ErrReservationExpired)

	_, err = m.SpendForDeferredCall(alice, "program", act, 1, 10)
	require.NoError(t, err, "valid_until itself is still spendable")

	_, err = m.SpendForDeferredCall(alice, "program", act, 1, 10)
	assert.ErrorIs(t, err, model.ErrReservationExhausted)
	assert.Equal(t, 1, q.Len())
}

func TestSpendForDeferredCall_DelayOverflow(t *testing.T) {
	m, _, q := newTestManager(1_000, 10)
	_, err := m.Reserve(alice, 100, 20, 3)
	require.NoError(t, err)

	_, err = m.SpendForDeferredCall(alice, "program", model.Command{Kind: model.CmdAct}, math.MaxUint64, 3)
	assert.ErrorIs(t, err, model.ErrOverflow)
	assert.Zero(t, q.Len())

	r, err := m.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), r.Remaining, "nothing charged for an unschedulable call")
}

func TestHealthOf(t *testing.T) {
	m, _, _ := newTestManager(1_000, 10)
	_, err := m.Reserve(alice, 100, 20, 5)
	require.NoError(t, err)

	h, err := m.HealthOf(alice, 10)
	require.NoError(t, err)
	assert.Equal(t, model.Health{RemainingAmount: 100, RemainingTicks: 15}, h)

	h, err = m.HealthOf(alice, 26)
	require.NoError(t, err)
	assert.True(t, h.Expired)
	assert.Zero(t, h.RemainingTicks)
}

func TestThresholds_NeedsAlert(t *testing.T) {
	th := Thresholds{Amount: 5_000, Ticks: 10}
	tests := []struct {
		name string
		h    model.Health
		want bool
	}{
		{"healthy", model.Health{RemainingAmount: 5_001, RemainingTicks: 11}, false},
		{"low budget", model.Health{RemainingAmount: 4_999, RemainingTicks: 100}, true},
		{"budget at threshold", model.Health{RemainingAmount: 5_000, RemainingTicks: 100}, true},
		{"low time", model.Health{RemainingAmount: 9_000, RemainingTicks: 10}, true},
		{"expired", model.Health{RemainingAmount: 9_000, Expired: true}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.NeedsAlert(tt.h), tt.name)
	}
}

func TestRelease_RefundsAndRemoves(t *testing.T) {
	m, bank, _ := newTestManager(1_000, 10)
	_, err := m.Reserve(alice, 300, 20, 1)
	require.NoError(t, err)

	refund, err := m.Release(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), refund)
	assert.Equal(t, uint64(1_000), bank.Balance(alice))
	assert.Empty(t, m.Accounts())

	_, err = m.Release(alice)
	assert.ErrorIs(t, err, model.ErrReservationMissing)
}
