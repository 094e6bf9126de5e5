package reservation

import (
	"fmt"
	"sync"

	"QuantSentinel/internal/model"
)

// Bank holds the execution-resource balances reservations are paid from.
type Bank interface {
	Balance(account model.Account) uint64
	Debit(account model.Account, amount uint64) error
	Credit(account model.Account, amount uint64) error
}

// MemoryBank is an in-process Bank.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[model.Account]uint64
}

// NewMemoryBank creates a bank seeded with the given balances.
func NewMemoryBank(initial map[model.Account]uint64) *MemoryBank {
	b := &MemoryBank{balances: make(map[model.Account]uint64, len(initial))}
	for acc, bal := range initial {
		b.balances[acc] = bal
	}
	return b
}

func (b *MemoryBank) Balance(account model.Account) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account]
}

func (b *MemoryBank) Debit(account model.Account, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[account] < amount {
		return fmt.Errorf("%s has %d, needs %d: %w", account, b.balances[account], amount, model.ErrInsufficientFunds)
	}
	b.balances[account] -= amount
	return nil
}

func (b *MemoryBank) Credit(account model.Account, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[account]+amount < b.balances[account] {
		return fmt.Errorf("credit %s: %w", account, model.ErrOverflow)
	}
	b.balances[account] += amount
	return nil
}

// Snapshot copies all balances.
func (b *MemoryBank) Snapshot() map[model.Account]uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[model.Account]uint64, len(b.balances))
	for acc, bal := range b.balances {
		out[acc] = bal
	}
	return out
}

// Restore replaces all balances.
func (b *MemoryBank) Restore(balances map[model.Account]uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances = make(map[model.Account]uint64, len(balances))
	for acc, bal := range balances {
		b.balances[acc] = bal
	}
}
