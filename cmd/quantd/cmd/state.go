package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"QuantSentinel/internal/model"
	"QuantSentinel/internal/notifier"
	"QuantSentinel/internal/recorder"
	"QuantSentinel/internal/store"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the persisted scheduler state",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}
		fmt.Printf("Tick: %d\n", snap.Tick)
		fmt.Print(notifier.FormatState(snap.State, snap.Tick))
		for _, r := range snap.Reservations {
			fmt.Printf("Reservation %s: %d/%d until tick %d\n", r.Account, r.Remaining, r.Amount, r.ValidUntil)
		}
		fmt.Printf("Pending calls: %d\n", len(snap.Pending))
		return nil
	},
}

var holdingsCmd = &cobra.Command{
	Use:   "holdings [account...]",
	Short: "Show persisted holdings, for all accounts or the ones given",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}
		accounts := make([]model.Account, 0, len(args))
		for _, a := range args {
			accounts = append(accounts, model.Account(a))
		}
		if len(accounts) == 0 {
			for acc := range snap.Holdings {
				accounts = append(accounts, acc)
			}
			sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
		}
		for _, acc := range accounts {
			fmt.Println(notifier.FormatHoldings(acc, snap.Holdings[acc]))
		}
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent cycles from the SQLite history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rec, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			return err
		}
		defer rec.Close()
		rows, err := rec.RecentCycles(historyLimit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Printf("run %d  tick %d  next %d  accounts %d\n", r.RunCount, r.Tick, r.NextDue, r.Accounts)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd, holdingsCmd, historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of cycles to show")
}

func loadSnapshot() (*store.Snapshot, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	snap, err := store.New(cfg.StateFile).Load()
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("no state at %s: %w", cfg.StateFile, model.ErrNotInitialized)
	}
	return snap, nil
}
