package quant

import (
	"log"

	"QuantSentinel/internal/deferred"
	"QuantSentinel/internal/store"
)

// Snapshot captures the whole instance.
func (m *Machine) Snapshot() *store.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Machine) snapshot() *store.Snapshot {
	snap := &store.Snapshot{
		Tick:         m.deps.Clock.Now(),
		State:        m.state,
		Holdings:     m.deps.Ledger.Snapshot(),
		Reservations: m.deps.Reservations.Snapshot(),
		Balances:     m.deps.Bank.Snapshot(),
	}
	for _, c := range m.deps.Queue.Pending() {
		snap.Pending = append(snap.Pending, store.PendingCall{
			Ticket: c.Ticket, At: c.At, Target: c.Target, Payload: c.Payload,
		})
	}
	return snap
}

// Restore loads a previously saved snapshot. The caller positions the clock
// at snap.Tick.
func (m *Machine) Restore(snap *store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deps.Ledger.Restore(snap.Holdings); err != nil {
		return err
	}
	m.deps.Reservations.Restore(snap.Reservations)
	m.deps.Bank.Restore(snap.Balances)
	calls := make([]deferred.Call, 0, len(snap.Pending))
	for _, p := range snap.Pending {
		calls = append(calls, deferred.Call{Ticket: p.Ticket, At: p.At, Target: p.Target, Payload: p.Payload})
	}
	m.deps.Queue.Restore(calls)

	// Ratio and period come from the current configuration.
	m.state.NextDue = snap.State.NextDue
	m.state.RunCount = snap.State.RunCount
	m.state.Terminated = snap.State.Terminated
	m.deps.Metrics.State(m.state)
	log.Printf("[INFO] restored state at tick %d: %d runs, next due %d, %d pending calls",
		snap.Tick, m.state.RunCount, m.state.NextDue, len(calls))
	return nil
}

func (m *Machine) persist() {
	if m.deps.Store == nil {
		return
	}
	if err := m.deps.Store.Save(m.snapshot()); err != nil {
		log.Printf("[ERROR] save state to %s: %v", m.deps.Store.Path(), err)
	}
}
