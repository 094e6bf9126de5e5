package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"QuantSentinel/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "quantd",
	Short: "Self-rescheduling weighted rebalancer",
	Long: `quantd runs one rebalancing instance. Every period it converts a share of
each account's stable holding into its weighted volatile assets and pays for
its own next run out of the owner's reservation.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	def := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		def = v
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", def, "path to YAML config")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
