package recorder

import "QuantSentinel/internal/model"

// BuyRow is one volatile conversion inside an account pass.
type BuyRow struct {
	Symbol string
	Price  uint64
	Share  model.Amount
	Bought model.Amount
	Cost   model.Amount
}

// AccountPass records one account's rebalance within a cycle.
type AccountPass struct {
	Account     model.Account
	Budget      model.Amount
	Spent       model.Amount
	Withheld    model.Amount
	Dust        model.Amount
	ValueBefore model.Amount
	ValueAfter  model.Amount
	Skipped     bool
	Note        string
	Buys        []BuyRow
}

// CycleEvent holds all data for one completed Act cycle.
type CycleEvent struct {
	Tick     model.Tick
	RunCount uint64
	NextDue  model.Tick
	Passes   []AccountPass
}

// ReservationEvent records a reservation lifecycle step.
type ReservationEvent struct {
	Tick       model.Tick
	Account    model.Account
	Action     string // "RESERVE", "SPEND", "RELEASE"
	Amount     uint64
	Remaining  uint64
	ValidUntil model.Tick
}

// AlertEvent records a reservation alert and whether it was delivered.
type AlertEvent struct {
	Tick      model.Tick
	Alert     model.GasAlert
	Delivered bool
	Error     string
}

// CycleRow is the summary row read back from history.
type CycleRow struct {
	Tick     model.Tick
	RunCount uint64
	NextDue  model.Tick
	Accounts int
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordCycle(evt *CycleEvent) error
	RecordReservation(evt *ReservationEvent) error
	RecordAlert(evt *AlertEvent) error
	Close() error
}
