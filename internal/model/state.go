package model

// RatioScale is the parts-per-million denominator of the investment ratio.
const RatioScale = 1_000_000

// SchedulerState is the persisted controller state of one instance.
// NextDue == 0 means stopped; otherwise the scheduler is armed for that tick.
type SchedulerState struct {
	InvestmentRatio uint64 `json:"investment_ratio"`
	Period          uint64 `json:"period"`
	NextDue         Tick   `json:"next_due"`
	RunCount        uint64 `json:"run_count"`
	Terminated      bool   `json:"terminated,omitempty"`
}

// Armed reports whether an Act is scheduled.
func (s SchedulerState) Armed() bool { return s.NextDue != 0 }

// Reservation is a prepaid execution budget held by one account.
type Reservation struct {
	ID         string  `json:"id"`
	Account    Account `json:"account"`
	Amount     uint64  `json:"amount"`
	Remaining  uint64  `json:"remaining"`
	CreatedAt  Tick    `json:"created_at"`
	ValidUntil Tick    `json:"valid_until"`
}

// Expired reports whether the reservation can no longer be spent at now.
func (r Reservation) Expired(now Tick) bool { return now > r.ValidUntil }

// Health is the remaining budget and validity of a reservation.
type Health struct {
	RemainingAmount uint64 `json:"remaining_amount"`
	RemainingTicks  uint64 `json:"remaining_ticks"`
	Expired         bool   `json:"expired"`
}

// GasAlert is the advisory sent to an account whose reservation runs low.
type GasAlert struct {
	Account         Account `json:"account"`
	RemainingAmount uint64  `json:"remaining_amount"`
	RemainingTicks  uint64  `json:"remaining_ticks"`
	Message         string  `json:"msg"`
}
