// Package ledger maps each participating account to its per-asset holdings.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"QuantSentinel/internal/model"
)

// Ledger is the account → asset → holding store. Rows are created lazily and
// never deleted; a zero amount is a valid terminal state.
type Ledger struct {
	mu       sync.Mutex
	registry *model.Registry
	rows     map[model.Account]map[string]*model.Holding
}

// New creates an empty ledger over registry.
func New(registry *model.Registry) *Ledger {
	return &Ledger{
		registry: registry,
		rows:     make(map[model.Account]map[string]*model.Holding),
	}
}

func (l *Ledger) row(account model.Account, symbol string) *model.Holding {
	acc, ok := l.rows[account]
	if !ok {
		acc = make(map[string]*model.Holding)
		l.rows[account] = acc
	}
	h, ok := acc[symbol]
	if !ok {
		h = &model.Holding{Symbol: symbol}
		acc[symbol] = h
	}
	return h
}

// Seed sets a row outright. Used at setup.
func (l *Ledger) Seed(account model.Account, h model.Holding) error {
	if _, err := l.registry.Lookup(h.Symbol); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.row(account, h.Symbol) = h
	return nil
}

// Deposit increases account's holding of symbol.
func (l *Ledger) Deposit(account model.Account, symbol string, amount model.Amount) error {
	if _, err := l.registry.Lookup(symbol); err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.row(account, symbol)
	next, err := h.Amount.Add(amount)
	if err != nil {
		return fmt.Errorf("deposit %s %s: %w", amount, symbol, err)
	}
	h.Amount = next
	return nil
}

// Withdraw decreases account's holding of symbol, rejecting amounts above the
// current balance with ErrInsufficientBalance.
func (l *Ledger) Withdraw(account model.Account, symbol string, amount model.Amount) error {
	if _, err := l.registry.Lookup(symbol); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var current model.Amount
	if h, ok := l.rows[account][symbol]; ok {
		current = h.Amount
	}
	if amount.Cmp(current) > 0 {
		return fmt.Errorf("withdraw %s %s, balance %s: %w", amount, symbol, current, model.ErrInsufficientBalance)
	}
	next, err := current.Sub(amount)
	if err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	l.row(account, symbol).Amount = next
	return nil
}

// SetWeights assigns weights, creating missing rows with amount 0. All symbols
// are validated before any row changes.
func (l *Ledger) SetWeights(account model.Account, changes []model.WeightChange) error {
	for _, c := range changes {
		if _, err := l.registry.Lookup(c.Symbol); err != nil {
			return fmt.Errorf("set weights: %w", err)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range changes {
		l.row(account, c.Symbol).Weight = c.Weight
	}
	return nil
}

// Holdings returns a copy of account's rows in ascending symbol order.
func (l *Ledger) Holdings(account model.Account) []model.Holding {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holdings(account)
}

func (l *Ledger) holdings(account model.Account) []model.Holding {
	acc := l.rows[account]
	out := make([]model.Holding, 0, len(acc))
	for _, h := range acc {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Replace overwrites account's rows with rows, e.g. to commit a rebalance.
func (l *Ledger) Replace(account model.Account, rows []model.Holding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range rows {
		*l.row(account, h.Symbol) = h
	}
}

// Accounts lists every account with at least one row, ascending.
func (l *Ledger) Accounts() []model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Account, 0, len(l.rows))
	for acc := range l.rows {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot copies the whole ledger.
func (l *Ledger) Snapshot() map[model.Account][]model.Holding {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[model.Account][]model.Holding, len(l.rows))
	for acc := range l.rows {
		out[acc] = l.holdings(acc)
	}
	return out
}

// Restore replaces the whole ledger. Unknown symbols are rejected.
func (l *Ledger) Restore(snap map[model.Account][]model.Holding) error {
	for acc, rows := range snap {
		for _, h := range rows {
			if _, err := l.registry.Lookup(h.Symbol); err != nil {
				return fmt.Errorf("restore %s: %w", acc, err)
			}
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = make(map[model.Account]map[string]*model.Holding, len(snap))
	for acc, rows := range snap {
		for _, h := range rows {
			*l.row(acc, h.Symbol) = h
		}
	}
	return nil
}
