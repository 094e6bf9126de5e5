package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantSentinel/internal/clock"
	"QuantSentinel/internal/deferred"
	"QuantSentinel/internal/ledger"
	"QuantSentinel/internal/model"
	"QuantSentinel/internal/notifier"
	"QuantSentinel/internal/oracle"
	"QuantSentinel/internal/quant"
	"QuantSentinel/internal/rebalance"
	"QuantSentinel/internal/reservation"
)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.sent = append(f.sent, text)
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *quant.Machine, *fakeSender) {
	t.Helper()
	reg, err := model.NewRegistry([]model.Asset{
		{Symbol: "ocqUSDT", Multiples: 1_000_000, Stable: true},
		{Symbol: "ocqBTC", Multiples: 100_000_000},
	})
	require.NoError(t, err)
	eng, err := rebalance.NewEngine(reg, 100_000)
	require.NoError(t, err)

	clk := clock.NewLogical(1)
	queue := deferred.NewQueue()
	bank := reservation.NewMemoryBank(map[model.Account]uint64{"owner": 1_000_000})
	m, err := quant.New(quant.Deps{
		Registry:     reg,
		Ledger:       ledger.New(reg),
		Reservations: reservation.NewManager(bank, queue, 10),
		Bank:         bank,
		Queue:        queue,
		Engine:       eng,
		Oracle:       oracle.NewStaticOracle(map[string]uint64{"ocqBTC": 30_000_000000}),
		Notifier:     notifier.LogNotifier{},
		Clock:        clk,
	}, quant.Options{
		Instance:      "instance",
		Owner:         "owner",
		Period:        2,
		DefaultBudget: 10_000,
		DefaultTicks:  1_000,
	})
	require.NoError(t, err)

	sender := &fakeSender{}
	s := NewScheduler(context.Background(), clk, queue, sender)
	return s, m, sender
}

func TestScheduler_NotInitialized(t *testing.T) {
	s, m, _ := newTestScheduler(t)

	_, err := s.Submit(model.Command{Kind: model.CmdQueryState})
	assert.ErrorIs(t, err, model.ErrNotInitialized)
	assert.Contains(t, s.HandleCommand("/state"), "not initialized")
	assert.NotPanics(t, s.Tick)

	require.NoError(t, s.Init(m))
	assert.Error(t, s.Init(m))
	_, err = s.Submit(model.Command{Kind: model.CmdQueryState})
	assert.NoError(t, err)
}

func TestScheduler_TickDeliversDueCalls(t *testing.T) {
	s, m, sender := newTestScheduler(t)
	require.NoError(t, s.Init(m))

	_, err := s.Submit(model.Command{Kind: model.CmdReserveBudgetDefault, From: "owner"})
	require.NoError(t, err)
	_, err = s.Submit(model.Command{Kind: model.CmdStart, From: "owner"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.State().RunCount)
	require.Len(t, sender.sent, 1, "first cycle reported")

	s.Tick()
	assert.Equal(t, uint64(1), m.State().RunCount)
	s.Tick()
	assert.Equal(t, uint64(2), m.State().RunCount)
	assert.Equal(t, model.Tick(5), m.State().NextDue)
	assert.Len(t, sender.sent, 2)

	for i := 0; i < 6; i++ {
		s.Tick()
	}
	assert.Equal(t, uint64(5), m.State().RunCount)
	assert.Equal(t, 1, s.Queue.Len())
}

func TestScheduler_HandleCommand(t *testing.T) {
	s, m, _ := newTestScheduler(t)
	require.NoError(t, s.Init(m))

	assert.Contains(t, s.HandleCommand("/reserve 5000 100"), "reserved 5000 for 100 ticks")
	assert.Contains(t, s.HandleCommand("/reserve x y"), "usage")
	assert.Contains(t, s.HandleCommand("/start"), "✅")
	assert.Contains(t, s.HandleCommand("/state"), "Runs: 1")
	assert.Contains(t, s.HandleCommand("/stop"), "✅")
	assert.Contains(t, s.HandleCommand("/state"), "stopped")
	assert.Contains(t, s.HandleCommand("/holdings"), "(none)")
	assert.Contains(t, s.HandleCommand("hello"), "/reserve")
}

func TestScheduler_StateShowsHaltedChain(t *testing.T) {
	s, m, sender := newTestScheduler(t)
	require.NoError(t, s.Init(m))

	assert.Contains(t, s.HandleCommand("/reserve 5000 1"), "✅")
	assert.Contains(t, s.HandleCommand("/start"), "✅")
	s.Tick()
	s.Tick()
	assert.Contains(t, sender.sent[len(sender.sent)-1], "reservation expired")
	assert.Contains(t, s.HandleCommand("/state"), "Next run: tick 3\n")

	s.Tick()
	assert.Contains(t, s.HandleCommand("/state"), "tick 3 missed, chain halted")
}

func TestScheduler_RegisterRejectsBadSpec(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	assert.Error(t, s.Register("not a spec"))
	assert.NoError(t, s.Register("@every 1s"))
}
