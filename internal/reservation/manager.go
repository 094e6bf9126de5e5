// Package reservation manages prepaid execution budgets that fund deferred
// self-invocations.
package reservation

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"QuantSentinel/internal/deferred"
	"QuantSentinel/internal/model"
)

// Handle is what a successful Reserve granted.
type Handle struct {
	ID         string
	Account    model.Account
	Amount     uint64
	ValidUntil model.Tick
}

// CallTicket identifies one paid deferred call.
type CallTicket struct {
	ID        string
	At        model.Tick
	Cost      uint64
	Remaining uint64
}

// Thresholds configure the low-budget / low-time alerting policy.
type Thresholds struct {
	Amount uint64
	Ticks  uint64
}

// NeedsAlert reports whether h has crossed any threshold.
func (t Thresholds) NeedsAlert(h model.Health) bool {
	return h.Expired || h.RemainingAmount <= t.Amount || h.RemainingTicks <= t.Ticks
}

// Manager keeps at most one live reservation per account.
type Manager struct {
	mu           sync.Mutex
	bank         Bank
	queue        *deferred.Queue
	callCost     uint64
	reservations map[model.Account]*model.Reservation
}

// NewManager creates a Manager that pays callCost per deferred call.
func NewManager(bank Bank, queue *deferred.Queue, callCost uint64) *Manager {
	return &Manager{
		bank:         bank,
		queue:        queue,
		callCost:     callCost,
		reservations: make(map[model.Account]*model.Reservation),
	}
}

// CallCost is the price of one deferred call.
func (m *Manager) CallCost() uint64 { return m.callCost }

// Reserve creates account's reservation, superseding any prior one. The old
// reservation's unspent remainder is refunded against the new amount, so a
// replace only costs the difference.
func (m *Manager) Reserve(account model.Account, amount, validFor uint64, now model.Tick) (Handle, error) {
	if amount == 0 || validFor == 0 {
		return Handle{}, fmt.Errorf("reserve %d for %d ticks: %w", amount, validFor, model.ErrInvalidReservation)
	}
	validUntil, err := now.Add(validFor)
	if err != nil {
		return Handle{}, fmt.Errorf("reserve %d for %d ticks: %w", amount, validFor, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var refund uint64
	old := m.reservations[account]
	if old != nil {
		refund = old.Remaining
	}
	// Settle only the net difference so neither side is summed.
	if amount > refund {
		if m.bank.Balance(account) < amount-refund {
			return Handle{}, fmt.Errorf("reserve %d for %s: %w", amount, account, model.ErrInsufficientFunds)
		}
		if err := m.bank.Debit(account, amount-refund); err != nil {
			return Handle{}, fmt.Errorf("debit reservation: %w", err)
		}
	} else if refund > amount {
		if err := m.bank.Credit(account, refund-amount); err != nil {
			return Handle{}, fmt.Errorf("refund old reservation: %w", err)
		}
	}
	if old != nil {
		log.Printf("[INFO] released reservation %s of %s, refunded %d", old.ID, account, refund)
	}

	r := &model.Reservation{
		ID:         uuid.NewString(),
		Account:    account,
		Amount:     amount,
		Remaining:  amount,
		CreatedAt:  now,
		ValidUntil: validUntil,
	}
	m.reservations[account] = r
	log.Printf("[INFO] reserve %d for %d ticks for %s", amount, validFor, account)
	return Handle{ID: r.ID, Account: account, Amount: amount, ValidUntil: r.ValidUntil}, nil
}

// Get returns a copy of account's reservation.
func (m *Manager) Get(account model.Account) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[account]
	if !ok {
		return model.Reservation{}, fmt.Errorf("%s: %w", account, model.ErrReservationMissing)
	}
	return *r, nil
}

// SpendForDeferredCall pays for one call of payload delivered to target delay
// ticks from now.
func (m *Manager) SpendForDeferredCall(account, target model.Account, payload model.Command, delay uint64, now model.Tick) (CallTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[account]
	if !ok {
		return CallTicket{}, fmt.Errorf("%s: %w", account, model.ErrReservationMissing)
	}
	if r.Expired(now) {
		return CallTicket{}, fmt.Errorf("%s valid until %d, now %d: %w", account, r.ValidUntil, now, model.ErrReservationExpired)
	}
	if r.Remaining < m.callCost {
		return CallTicket{}, fmt.Errorf("%s has %d, call costs %d: %w", account, r.Remaining, m.callCost, model.ErrReservationExhausted)
	}
	at, err := now.Add(delay)
	if err != nil {
		return CallTicket{}, fmt.Errorf("schedule call for %s: %w", account, err)
	}
	r.Remaining -= m.callCost

	ticket := CallTicket{
		ID:        uuid.NewString(),
		At:        at,
		Cost:      m.callCost,
		Remaining: r.Remaining,
	}
	m.queue.Schedule(deferred.Call{Ticket: ticket.ID, At: ticket.At, Target: target, Payload: payload})
	return ticket, nil
}

// HealthOf reports the remaining budget and validity of account's reservation.
func (m *Manager) HealthOf(account model.Account, now model.Tick) (model.Health, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[account]
	if !ok {
		return model.Health{}, fmt.Errorf("%s: %w", account, model.ErrReservationMissing)
	}
	return healthOf(r, now), nil
}

func healthOf(r *model.Reservation, now model.Tick) model.Health {
	h := model.Health{RemainingAmount: r.Remaining}
	if r.Expired(now) {
		h.Expired = true
		return h
	}
	h.RemainingTicks = uint64(r.ValidUntil - now)
	return h
}

// Release drops account's reservation and refunds its remainder.
func (m *Manager) Release(account model.Account) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[account]
	if !ok {
		return 0, fmt.Errorf("%s: %w", account, model.ErrReservationMissing)
	}
	if err := m.bank.Credit(account, r.Remaining); err != nil {
		return 0, err
	}
	delete(m.reservations, account)
	log.Printf("[INFO] released reservation %s of %s, refunded %d", r.ID, account, r.Remaining)
	return r.Remaining, nil
}

// Accounts lists accounts holding a reservation in ascending order.
func (m *Manager) Accounts() []model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Account, 0, len(m.reservations))
	for acc := range m.reservations {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot copies every live reservation.
func (m *Manager) Snapshot() []model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

// Restore replaces the live reservations without touching the bank.
func (m *Manager) Restore(rs []model.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations = make(map[model.Account]*model.Reservation, len(rs))
	for i := range rs {
		r := rs[i]
		m.reservations[r.Account] = &r
	}
}
