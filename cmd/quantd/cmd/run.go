package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"QuantSentinel/internal/model"
)

var startOnBoot bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the instance until interrupted",
	RunE:  runInstance,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&startOnBoot, "start", os.Getenv("RUN_ON_START") == "true",
		"reserve the default budget and send Start as the owner once running")
}

func runInstance(cmd *cobra.Command, args []string) error {
	log.Println("[INFO] QuantSentinel starting...")
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in, err := wire(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := in.sched.Register(cfg.Quant.TickSpec); err != nil {
		return err
	}
	in.sched.Start()
	defer in.sched.Stop()

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[ERROR] metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Printf("[INFO] metrics on %s/metrics", cfg.Metrics.Listen)
	}

	if in.telegram != nil {
		go in.telegram.StartPolling(ctx, in.sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if startOnBoot {
		owner := in.machine.Owner()
		if _, err := in.sched.Submit(model.Command{Kind: model.CmdReserveBudgetDefault, From: owner}); err != nil {
			log.Printf("[WARN] reserve on start: %v", err)
		}
		if _, err := in.sched.Submit(model.Command{Kind: model.CmdStart, From: owner}); err != nil {
			log.Printf("[ERROR] start: %v", err)
		}
	}

	log.Printf("[INFO] instance %s is running (tick %q). Press Ctrl+C to stop.", cfg.InstanceID, cfg.Quant.TickSpec)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	return nil
}
