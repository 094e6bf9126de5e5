package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"QuantSentinel/internal/clock"
	"QuantSentinel/internal/config"
	"QuantSentinel/internal/deferred"
	"QuantSentinel/internal/ledger"
	"QuantSentinel/internal/metrics"
	"QuantSentinel/internal/model"
	"QuantSentinel/internal/notifier"
	"QuantSentinel/internal/oracle"
	"QuantSentinel/internal/quant"
	"QuantSentinel/internal/rebalance"
	"QuantSentinel/internal/recorder"
	"QuantSentinel/internal/reservation"
	"QuantSentinel/internal/scheduler"
	"QuantSentinel/internal/store"
)

// instance is a fully wired runtime.
type instance struct {
	sched    *scheduler.Scheduler
	machine  *quant.Machine
	telegram *notifier.TelegramNotifier
	recorder recorder.Recorder
}

func (in *instance) Close() {
	if err := in.recorder.Close(); err != nil {
		log.Printf("[WARN] close recorder: %v", err)
	}
}

func newOracle(cfg *config.Config) (oracle.PriceOracle, error) {
	if cfg.DataSource.BaseURL != "" {
		return oracle.NewHTTPOracle(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy), nil
	}
	sim := oracle.NewSimulatedOracle(cfg.InstanceID)
	for _, a := range cfg.Assets {
		if a.Stable {
			continue
		}
		if err := sim.Register(a.Symbol, a.BasePrice); err != nil {
			return nil, err
		}
	}
	return sim, nil
}

func newRecorder(path string) recorder.Recorder {
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(path)
	if err != nil {
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		return recorder.NewNoopRecorder()
	}
	return sr
}

// wire builds every component from cfg and resumes from the state file when
// one exists.
func wire(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*instance, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	engine, err := rebalance.NewEngine(registry, cfg.Quant.InvestmentRatio)
	if err != nil {
		return nil, err
	}
	price, err := newOracle(cfg)
	if err != nil {
		return nil, fmt.Errorf("init oracle: %w", err)
	}
	log.Printf("[INFO] price oracle: %s", price.Name())

	clk := clock.NewLogical(model.Tick(cfg.Quant.StartTick))
	queue := deferred.NewQueue()
	bank := reservation.NewMemoryBank(cfg.Balances())
	led := ledger.New(registry)

	in := &instance{recorder: newRecorder(cfg.Database.SQLitePath)}
	var alerts notifier.Notifier = notifier.LogNotifier{}
	var sender scheduler.Sender
	if cfg.Telegram.BotToken != "" {
		in.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		alerts = in.telegram
		sender = in.telegram
	}

	in.machine, err = quant.New(quant.Deps{
		Registry:     registry,
		Ledger:       led,
		Reservations: reservation.NewManager(bank, queue, cfg.Reservation.CallCost),
		Bank:         bank,
		Queue:        queue,
		Engine:       engine,
		Oracle:       price,
		Notifier:     alerts,
		Recorder:     in.recorder,
		Metrics:      metrics.New(reg),
		Clock:        clk,
		Store:        store.New(cfg.StateFile),
	}, quant.Options{
		Instance:      model.Account(cfg.InstanceID),
		Owner:         model.Account(cfg.Owner),
		Period:        cfg.Quant.Period,
		DefaultBudget: cfg.Reservation.DefaultAmount,
		DefaultTicks:  cfg.Reservation.DefaultTicks,
		Thresholds: reservation.Thresholds{
			Amount: cfg.Reservation.AlertAmount,
			Ticks:  cfg.Reservation.AlertTicks,
		},
	})
	if err != nil {
		in.Close()
		return nil, err
	}

	snap, err := store.New(cfg.StateFile).Load()
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}
	if snap != nil {
		if err := in.machine.Restore(snap); err != nil {
			in.Close()
			return nil, fmt.Errorf("restore state: %w", err)
		}
		clk.Set(snap.Tick)
	} else if err := seed(cfg, led); err != nil {
		in.Close()
		return nil, err
	}

	in.sched = scheduler.NewScheduler(ctx, clk, queue, sender)
	if err := in.sched.Init(in.machine); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

// seed gives every configured account the prototype holdings.
func seed(cfg *config.Config, led *ledger.Ledger) error {
	proto, err := cfg.Prototype()
	if err != nil {
		return err
	}
	for _, acc := range cfg.SeededAccounts() {
		for _, h := range proto {
			if err := led.Seed(acc, h); err != nil {
				return fmt.Errorf("seed %s: %w", acc, err)
			}
		}
	}
	log.Printf("[INFO] seeded %d accounts with %d assets", len(cfg.SeededAccounts()), len(proto))
	return nil
}
