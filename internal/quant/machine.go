// Package quant implements the self-rescheduling rebalancing instance: one
// recurring Act, funded out of the owner's reservation, that converts a share
// of every account's stable holding into its weighted volatile assets.
package quant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"QuantSentinel/internal/clock"
	"QuantSentinel/internal/deferred"
	"QuantSentinel/internal/ledger"
	"QuantSentinel/internal/metrics"
	"QuantSentinel/internal/model"
	"QuantSentinel/internal/notifier"
	"QuantSentinel/internal/oracle"
	"QuantSentinel/internal/rebalance"
	"QuantSentinel/internal/recorder"
	"QuantSentinel/internal/reservation"
	"QuantSentinel/internal/store"
)

// Deps are the collaborators a Machine drives. Recorder, Metrics and Store are
// optional.
type Deps struct {
	Registry     *model.Registry
	Ledger       *ledger.Ledger
	Reservations *reservation.Manager
	Bank         *reservation.MemoryBank
	Queue        *deferred.Queue
	Engine       *rebalance.Engine
	Oracle       oracle.PriceOracle
	Notifier     notifier.Notifier
	Recorder     recorder.Recorder
	Metrics      *metrics.Metrics
	Clock        clock.Clock
	Store        *store.Store
}

// Options are the per-instance parameters fixed at setup.
type Options struct {
	Instance model.Account
	Owner    model.Account
	Period   uint64

	DefaultBudget uint64
	DefaultTicks  uint64
	Thresholds    reservation.Thresholds
}

// Machine is one instance. Every command runs under mu, so a delivered Act
// never interleaves with Start or Stop.
type Machine struct {
	mu    sync.Mutex
	deps  Deps
	opts  Options
	state model.SchedulerState
	last  notifier.CycleSummary
}

// New validates deps and opts and returns a stopped Machine.
func New(deps Deps, opts Options) (*Machine, error) {
	switch {
	case deps.Registry == nil, deps.Ledger == nil, deps.Reservations == nil,
		deps.Bank == nil, deps.Queue == nil, deps.Engine == nil,
		deps.Oracle == nil, deps.Notifier == nil, deps.Clock == nil:
		return nil, errors.New("quant: missing dependency")
	case opts.Owner == "" || opts.Instance == "":
		return nil, errors.New("quant: owner and instance accounts are required")
	case opts.Period == 0:
		return nil, errors.New("quant: period must be at least 1 tick")
	}
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	return &Machine{
		deps: deps,
		opts: opts,
		state: model.SchedulerState{
			InvestmentRatio: deps.Engine.Ratio(),
			Period:          opts.Period,
		},
	}, nil
}

// Owner is the account allowed to start, stop and terminate the instance.
func (m *Machine) Owner() model.Account { return m.opts.Owner }

// Instance is the instance's own account; deferred Acts are addressed to it.
func (m *Machine) Instance() model.Account { return m.opts.Instance }

// State returns a copy of the scheduler state.
func (m *Machine) State() model.SchedulerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastCycle summarizes the most recent committed cycle. RunCount is 0 if none
// ran since the process started.
func (m *Machine) LastCycle() notifier.CycleSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Handle dispatches one command.
func (m *Machine) Handle(ctx context.Context, cmd model.Command) (model.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Terminated {
		return model.Reply{}, fmt.Errorf("%s: %w", cmd.Kind, model.ErrTerminated)
	}
	reply, err := m.dispatch(ctx, cmd)
	if errors.Is(err, model.ErrOverflow) || errors.Is(err, model.ErrUnderflow) {
		log.Printf("[ERROR] %s from %s: %v", cmd.Kind, cmd.From, err)
	}
	return reply, err
}

func (m *Machine) dispatch(ctx context.Context, cmd model.Command) (model.Reply, error) {
	ack := model.Reply{Kind: model.ReplyAck}
	switch cmd.Kind {
	case model.CmdStart:
		return ack, m.start(ctx, cmd.From)
	case model.CmdStop:
		return ack, m.stop(cmd.From)
	case model.CmdAct:
		return ack, m.act(ctx, cmd.From)
	case model.CmdReserveBudget:
		return m.reserve(cmd.From, cmd.Budget, cmd.Ticks)
	case model.CmdReserveBudgetDefault:
		return m.reserve(cmd.From, m.opts.DefaultBudget, m.opts.DefaultTicks)
	case model.CmdSetWeights:
		if err := m.deps.Ledger.SetWeights(cmd.From, cmd.Weight); err != nil {
			return model.Reply{}, err
		}
		m.persist()
		return ack, nil
	case model.CmdDeposit:
		if err := m.deps.Ledger.Deposit(cmd.From, cmd.Symbol, cmd.Amount); err != nil {
			return model.Reply{}, err
		}
		m.persist()
		return ack, nil
	case model.CmdWithdraw:
		if err := m.deps.Ledger.Withdraw(cmd.From, cmd.Symbol, cmd.Amount); err != nil {
			return model.Reply{}, err
		}
		m.persist()
		return ack, nil
	case model.CmdTerminate:
		return m.terminate(cmd.From)
	case model.CmdQueryState:
		st := m.state
		return model.Reply{Kind: model.ReplyState, State: &st}, nil
	case model.CmdQueryHoldings:
		return model.Reply{Kind: model.ReplyHoldings, Holdings: m.deps.Ledger.Holdings(cmd.From)}, nil
	default:
		return model.Reply{}, fmt.Errorf("unknown command %q", cmd.Kind)
	}
}

func (m *Machine) isOwner(cmd model.CommandKind, by model.Account) bool {
	if by == m.opts.Owner {
		return true
	}
	log.Printf("[WARN] %s from %s ignored: %v", cmd, by, model.ErrNotOwner)
	m.deps.Metrics.Noop(cmd, "not_owner")
	return false
}

// start arms the scheduler at the current tick and runs the first Act at
// once. If that Act aborts, the previous state is kept. Tick 0 cannot be
// armed since NextDue 0 means stopped.
func (m *Machine) start(ctx context.Context, by model.Account) error {
	if !m.isOwner(model.CmdStart, by) {
		return nil
	}
	now := m.deps.Clock.Now()
	if now == 0 {
		return fmt.Errorf("start: %w", model.ErrTickZero)
	}
	if m.state.Armed() {
		log.Printf("[INFO] start: already armed for tick %d, re-arming at %d", m.state.NextDue, now)
	}
	prev := m.state
	m.state.NextDue = now
	if err := m.act(ctx, by); err != nil {
		m.state = prev
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

func (m *Machine) stop(by model.Account) error {
	if !m.isOwner(model.CmdStop, by) {
		return nil
	}
	m.state.NextDue = 0
	log.Printf("[INFO] stopped after %d runs", m.state.RunCount)
	m.deps.Metrics.State(m.state)
	m.persist()
	return nil
}

func (m *Machine) reserve(by model.Account, amount, ticks uint64) (model.Reply, error) {
	now := m.deps.Clock.Now()
	h, err := m.deps.Reservations.Reserve(by, amount, ticks, now)
	if err != nil {
		return model.Reply{}, err
	}
	m.recordReservation(now, by, "RESERVE", amount, amount, h.ValidUntil)
	if health, err := m.deps.Reservations.HealthOf(by, now); err == nil {
		m.deps.Metrics.Reservation(by, health)
	}
	m.persist()
	return model.Reply{Kind: model.ReplyGranted, Granted: &model.Grant{Amount: amount, Ticks: ticks}}, nil
}

// terminate releases every reservation back to its creator, sweeps the
// instance's own balance to the owner and retires the instance.
func (m *Machine) terminate(by model.Account) (model.Reply, error) {
	if !m.isOwner(model.CmdTerminate, by) {
		return model.Reply{Kind: model.ReplyAck}, nil
	}
	now := m.deps.Clock.Now()
	for _, acc := range m.deps.Reservations.Accounts() {
		refund, err := m.deps.Reservations.Release(acc)
		if err != nil {
			return model.Reply{}, fmt.Errorf("terminate: release %s: %w", acc, err)
		}
		m.recordReservation(now, acc, "RELEASE", refund, 0, now)
	}
	if bal := m.deps.Bank.Balance(m.opts.Instance); bal > 0 {
		if err := m.deps.Bank.Debit(m.opts.Instance, bal); err != nil {
			return model.Reply{}, fmt.Errorf("terminate: sweep: %w", err)
		}
		if err := m.deps.Bank.Credit(m.opts.Owner, bal); err != nil {
			return model.Reply{}, fmt.Errorf("terminate: sweep: %w", err)
		}
		log.Printf("[INFO] swept %d from %s to %s", bal, m.opts.Instance, m.opts.Owner)
	}
	m.state.NextDue = 0
	m.state.Terminated = true
	m.deps.Metrics.State(m.state)
	log.Printf("[INFO] instance %s terminated by %s", m.opts.Instance, by)
	m.persist()
	return model.Reply{Kind: model.ReplyTerminated}, nil
}

func (m *Machine) recordReservation(now model.Tick, acc model.Account, action string, amount, remaining uint64, validUntil model.Tick) {
	if err := m.deps.Recorder.RecordReservation(&recorder.ReservationEvent{
		Tick:       now,
		Account:    acc,
		Action:     action,
		Amount:     amount,
		Remaining:  remaining,
		ValidUntil: validUntil,
	}); err != nil {
		log.Printf("[ERROR] record reservation: %v", err)
	}
}
