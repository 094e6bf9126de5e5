package quant

import (
	"context"
	"errors"
	"fmt"
	"log"

	"QuantSentinel/internal/model"
	"QuantSentinel/internal/notifier"
	"QuantSentinel/internal/rebalance"
	"QuantSentinel/internal/recorder"
)

// pass is one account's outcome inside a cycle, before commit.
type pass struct {
	account model.Account
	result  rebalance.Result
	skipped error
}

// act runs one cycle if it is due. Nothing is committed unless the next Act
// was successfully paid for.
func (m *Machine) act(ctx context.Context, by model.Account) error {
	now := m.deps.Clock.Now()
	if !m.state.Armed() || m.state.NextDue != now {
		log.Printf("[INFO] act from %s at tick %d ignored (next due %d): %v", by, now, m.state.NextDue, model.ErrNotDueYet)
		m.deps.Metrics.Noop(model.CmdAct, "not_due")
		return nil
	}
	owner := m.opts.Owner

	if _, err := m.deps.Reservations.Get(owner); err != nil {
		m.deps.Metrics.Abort("reservation_missing")
		log.Printf("[ERROR] act at tick %d aborted: %v", now, err)
		return fmt.Errorf("act: %w", err)
	}

	prices, err := m.deps.Oracle.PricesOf(ctx, m.deps.Registry.VolatileSymbols(), now)
	if err != nil {
		log.Printf("[WARN] %s oracle at tick %d: %v", m.deps.Oracle.Name(), now, err)
	}

	passes, err := m.rebalanceAll(prices)
	if err != nil {
		m.deps.Metrics.Abort("overflow")
		return fmt.Errorf("act: %w", err)
	}

	m.checkHealth(ctx, now)

	next, err := now.Add(m.state.Period)
	if err != nil {
		m.deps.Metrics.Abort("overflow")
		return fmt.Errorf("act: next due: %w", err)
	}
	ticket, err := m.deps.Reservations.SpendForDeferredCall(
		owner, m.opts.Instance,
		model.Command{Kind: model.CmdAct, From: m.opts.Instance},
		m.state.Period, now,
	)
	if err != nil {
		m.deps.Metrics.Abort(abortReason(err))
		log.Printf("[ERROR] act at tick %d aborted, next run not scheduled: %v", now, err)
		return fmt.Errorf("act: schedule next: %w", err)
	}
	m.recordReservation(now, owner, "SPEND", ticket.Cost, ticket.Remaining, 0)

	for _, p := range passes {
		if p.skipped == nil {
			m.deps.Ledger.Replace(p.account, p.result.Rows)
		}
	}
	m.state.RunCount++
	m.state.NextDue = next
	m.deps.Metrics.Cycle(m.state)
	log.Printf("[INFO] cycle %d done at tick %d, next at %d", m.state.RunCount, now, m.state.NextDue)

	m.last = summarize(now, m.state, passes)
	m.recordCycle(now, passes)
	m.persist()
	return nil
}

func summarize(now model.Tick, st model.SchedulerState, passes []pass) notifier.CycleSummary {
	s := notifier.CycleSummary{RunCount: st.RunCount, Tick: now, NextDue: st.NextDue}
	for _, p := range passes {
		if p.skipped != nil {
			s.Skipped++
			continue
		}
		s.Accounts++
		// Totals are for display; on overflow keep the partial sum.
		if b, err := s.Budget.Add(p.result.Budget); err == nil {
			s.Budget = b
		}
		if sp, err := s.Spent.Add(p.result.Spent); err == nil {
			s.Spent = sp
		}
	}
	return s
}

// rebalanceAll computes every account's pass on copies of its rows. Only
// arithmetic overflow fails the whole cycle; any other error skips that
// account.
func (m *Machine) rebalanceAll(prices map[string]uint64) ([]pass, error) {
	var passes []pass
	for _, acc := range m.deps.Ledger.Accounts() {
		res, err := m.deps.Engine.Rebalance(m.deps.Ledger.Holdings(acc), prices)
		switch {
		case errors.Is(err, model.ErrOverflow), errors.Is(err, model.ErrUnderflow):
			log.Printf("[ERROR] rebalance %s: %v", acc, err)
			return nil, fmt.Errorf("rebalance %s: %w", acc, err)
		case err != nil:
			log.Printf("[WARN] rebalance %s skipped: %v", acc, err)
			m.deps.Metrics.AccountPass("skipped")
			passes = append(passes, pass{account: acc, skipped: err})
			continue
		}
		if res.ZeroWeights {
			m.deps.Metrics.AccountPass("zero_weights")
		} else {
			m.deps.Metrics.AccountPass("converted")
		}
		passes = append(passes, pass{account: acc, result: res})
	}
	return passes, nil
}

// checkHealth alerts the owner when its reservation runs low. Delivery is
// best-effort.
func (m *Machine) checkHealth(ctx context.Context, now model.Tick) {
	owner := m.opts.Owner
	h, err := m.deps.Reservations.HealthOf(owner, now)
	if err != nil {
		log.Printf("[WARN] health of %s: %v", owner, err)
		return
	}
	m.deps.Metrics.Reservation(owner, h)
	if !m.opts.Thresholds.NeedsAlert(h) {
		return
	}
	msg := "reservation is running low, reserve more budget to keep the scheduler running"
	if cost := m.deps.Reservations.CallCost(); cost > 0 && !h.Expired {
		msg = fmt.Sprintf("reservation covers %d more runs, reserve more budget to keep the scheduler running", h.RemainingAmount/cost)
	}
	alert := model.GasAlert{
		Account:         owner,
		RemainingAmount: h.RemainingAmount,
		RemainingTicks:  h.RemainingTicks,
		Message:         msg,
	}
	evt := &recorder.AlertEvent{Tick: now, Alert: alert, Delivered: true}
	if err := m.deps.Notifier.NotifyAlert(ctx, alert); err != nil {
		log.Printf("[WARN] alert to %s not delivered: %v", owner, err)
		evt.Delivered = false
		evt.Error = err.Error()
	}
	m.deps.Metrics.Alert(evt.Delivered)
	if err := m.deps.Recorder.RecordAlert(evt); err != nil {
		log.Printf("[ERROR] record alert: %v", err)
	}
}

func (m *Machine) recordCycle(now model.Tick, passes []pass) {
	evt := &recorder.CycleEvent{Tick: now, RunCount: m.state.RunCount, NextDue: m.state.NextDue}
	for _, p := range passes {
		ap := recorder.AccountPass{Account: p.account}
		if p.skipped != nil {
			ap.Skipped = true
			ap.Note = p.skipped.Error()
			evt.Passes = append(evt.Passes, ap)
			continue
		}
		r := p.result
		ap.Budget, ap.Spent, ap.Withheld, ap.Dust = r.Budget, r.Spent, r.Withheld, r.Dust
		ap.ValueBefore, ap.ValueAfter = r.ValueBefore, r.ValueAfter
		if r.ZeroWeights {
			ap.Note = "no volatile weight"
		}
		for _, b := range r.Buys {
			m.deps.Metrics.Buy(b.Symbol)
			ap.Buys = append(ap.Buys, recorder.BuyRow{
				Symbol: b.Symbol, Price: b.Price, Share: b.Share, Bought: b.Bought, Cost: b.Cost,
			})
		}
		evt.Passes = append(evt.Passes, ap)
	}
	if err := m.deps.Recorder.RecordCycle(evt); err != nil {
		log.Printf("[ERROR] record cycle: %v", err)
	}
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, model.ErrReservationMissing):
		return "reservation_missing"
	case errors.Is(err, model.ErrReservationExpired):
		return "reservation_expired"
	case errors.Is(err, model.ErrReservationExhausted):
		return "reservation_exhausted"
	case errors.Is(err, model.ErrOverflow):
		return "overflow"
	default:
		return "other"
	}
}
