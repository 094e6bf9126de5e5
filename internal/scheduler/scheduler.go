// Package scheduler hosts a quant.Machine: it drives the logical clock from a
// cron schedule, delivers due deferred calls and accepts owner commands.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"QuantSentinel/internal/clock"
	"QuantSentinel/internal/deferred"
	"QuantSentinel/internal/model"
	"QuantSentinel/internal/notifier"
	"QuantSentinel/internal/quant"
)

// Sender delivers free-form operator messages.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler is the runtime host of one instance.
type Scheduler struct {
	Cron   *cron.Cron
	Clock  *clock.Logical
	Queue  *deferred.Queue
	Sender Sender
	Ctx    context.Context

	mu      sync.Mutex
	machine *quant.Machine
	lastRun uint64
}

// NewScheduler creates a host. sender may be nil.
func NewScheduler(ctx context.Context, clk *clock.Logical, queue *deferred.Queue, sender Sender) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(cron.WithSeconds()),
		Clock:  clk,
		Queue:  queue,
		Sender: sender,
		Ctx:    ctx,
	}
}

// Init installs the machine. Commands before Init fail with ErrNotInitialized.
func (s *Scheduler) Init(m *quant.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine != nil {
		return errors.New("scheduler already initialized")
	}
	s.machine = m
	s.lastRun = m.State().RunCount
	return nil
}

func (s *Scheduler) Machine() (*quant.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return nil, model.ErrNotInitialized
	}
	return s.machine, nil
}

// Register adds the tick job. Each firing advances the clock by one tick.
func (s *Scheduler) Register(tickSpec string) error {
	if _, err := s.Cron.AddFunc(tickSpec, func() { s.Tick() }); err != nil {
		return fmt.Errorf("register tick %q: %w", tickSpec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// Submit runs one command against the machine.
func (s *Scheduler) Submit(cmd model.Command) (model.Reply, error) {
	m, err := s.Machine()
	if err != nil {
		return model.Reply{}, err
	}
	reply, err := m.Handle(s.Ctx, cmd)
	s.reportCycle(m)
	return reply, err
}

// Tick advances the clock and delivers every call that fell due.
func (s *Scheduler) Tick() {
	m, err := s.Machine()
	if err != nil {
		log.Printf("[WARN] tick: %v", err)
		return
	}
	now := s.Clock.Advance(1)
	for _, c := range s.Queue.Due(now) {
		if c.Target != m.Instance() {
			log.Printf("[WARN] dropping call %s for unknown target %s", c.Ticket, c.Target)
			continue
		}
		_, err := m.Handle(s.Ctx, c.Payload)
		switch {
		case errors.Is(err, model.ErrTerminated):
			log.Printf("[DEBUG] call %s after terminate dropped", c.Ticket)
		case err != nil:
			log.Printf("[ERROR] deliver %s at tick %d: %v", c.Payload.Kind, now, err)
			s.trySend(fmt.Sprintf("❌ <b>%s failed</b> at tick %d\n\n%v", c.Payload.Kind, now, err))
		}
	}
	s.reportCycle(m)
}

// reportCycle sends a report when a new cycle was committed since the last
// report.
func (s *Scheduler) reportCycle(m *quant.Machine) {
	last := m.LastCycle()
	s.mu.Lock()
	fresh := last.RunCount > s.lastRun
	if fresh {
		s.lastRun = last.RunCount
	}
	s.mu.Unlock()
	if fresh {
		s.trySend(notifier.FormatCycleReport(last))
	}
}

// HandleCommand processes an owner chat command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	m, err := s.Machine()
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	owner := m.Owner()
	switch fields[0] {
	case "/start":
		return s.ack(model.Command{Kind: model.CmdStart, From: owner})
	case "/stop":
		return s.ack(model.Command{Kind: model.CmdStop, From: owner})
	case "/act":
		return s.ack(model.Command{Kind: model.CmdAct, From: owner})
	case "/reserve":
		cmd := model.Command{Kind: model.CmdReserveBudgetDefault, From: owner}
		if len(fields) == 3 {
			amount, err1 := strconv.ParseUint(fields[1], 10, 64)
			ticks, err2 := strconv.ParseUint(fields[2], 10, 64)
			if err := errors.Join(err1, err2); err != nil {
				return "usage: /reserve [amount ticks]"
			}
			cmd = model.Command{Kind: model.CmdReserveBudget, From: owner, Budget: amount, Ticks: ticks}
		}
		reply, err := s.Submit(cmd)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return fmt.Sprintf("✅ reserved %d for %d ticks", reply.Granted.Amount, reply.Granted.Ticks)
	case "/state":
		reply, err := s.Submit(model.Command{Kind: model.CmdQueryState, From: owner})
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatState(*reply.State, s.Clock.Now())
	case "/holdings":
		acc := owner
		if len(fields) > 1 {
			acc = model.Account(fields[1])
		}
		reply, err := s.Submit(model.Command{Kind: model.CmdQueryHoldings, From: acc})
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatHoldings(acc, reply.Holdings)
	default:
		return helpText
	}
}

const helpText = "Commands:\n• /start\n• /stop\n• /act\n• /reserve [amount ticks]\n• /state\n• /holdings [account]"

func (s *Scheduler) ack(cmd model.Command) string {
	if _, err := s.Submit(cmd); err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	return "✅ " + strings.ToLower(string(cmd.Kind))
}

func (s *Scheduler) trySend(text string) {
	if s.Sender == nil {
		return
	}
	if err := s.Sender.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
