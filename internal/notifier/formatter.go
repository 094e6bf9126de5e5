package notifier

import (
	"fmt"
	"strings"

	"QuantSentinel/internal/model"
)

// FormatGasAlert formats a reservation alert into a Telegram message.
func FormatGasAlert(alert model.GasAlert) string {
	var b strings.Builder
	b.WriteString("⛽ <b>Reservation alert</b>\n\n")
	b.WriteString(fmt.Sprintf("Account: %s\n", alert.Account))
	b.WriteString(fmt.Sprintf("Remaining budget: %d\n", alert.RemainingAmount))
	b.WriteString(fmt.Sprintf("Remaining ticks: %d\n", alert.RemainingTicks))
	if alert.Message != "" {
		b.WriteString(fmt.Sprintf("\n%s\n", alert.Message))
	}
	return b.String()
}

// FormatState formats the scheduler state as seen at tick now. An armed state
// whose next run is already behind now belongs to a chain whose last Act
// aborted; nothing will run until the owner starts it again.
func FormatState(state model.SchedulerState, now model.Tick) string {
	var b strings.Builder
	b.WriteString("📦 <b>Scheduler state</b>\n\n")
	b.WriteString(fmt.Sprintf("Investment ratio: %d ppm (%.4f%%)\n",
		state.InvestmentRatio, float64(state.InvestmentRatio)/float64(model.RatioScale)*100))
	b.WriteString(fmt.Sprintf("Period: %d ticks\n", state.Period))
	switch {
	case state.Armed() && state.NextDue < now:
		b.WriteString(fmt.Sprintf("Next run: tick %d missed, chain halted (send /start to resume)\n", state.NextDue))
	case state.Armed():
		b.WriteString(fmt.Sprintf("Next run: tick %d\n", state.NextDue))
	default:
		b.WriteString("Next run: stopped\n")
	}
	b.WriteString(fmt.Sprintf("Runs: %d\n", state.RunCount))
	if state.Terminated {
		b.WriteString("Terminated ✖\n")
	}
	return b.String()
}

// FormatHoldings formats one account's rows.
func FormatHoldings(account model.Account, rows []model.Holding) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💰 <b>Holdings</b> | %s\n\n", account))
	if len(rows) == 0 {
		b.WriteString("(none)\n")
		return b.String()
	}
	for _, h := range rows {
		b.WriteString(fmt.Sprintf("%s: %s (weight %d)\n", h.Symbol, h.Amount, h.Weight))
	}
	return b.String()
}

// CycleSummary is the per-cycle digest handed to the formatter.
type CycleSummary struct {
	RunCount uint64
	Tick     model.Tick
	NextDue  model.Tick
	Accounts int
	Skipped  int
	Budget   model.Amount
	Spent    model.Amount
}

// FormatCycleReport formats one completed Act cycle.
func FormatCycleReport(s CycleSummary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Cycle %d</b> | tick %d\n\n", s.RunCount, s.Tick))
	b.WriteString(fmt.Sprintf("Accounts rebalanced: %d (skipped %d)\n", s.Accounts, s.Skipped))
	b.WriteString(fmt.Sprintf("Budget: %s | converted: %s\n", s.Budget, s.Spent))
	b.WriteString(fmt.Sprintf("Next run: tick %d\n", s.NextDue))
	return b.String()
}
