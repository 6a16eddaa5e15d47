package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/keepwaifu/backend/internal/config"
	"github.com/keepwaifu/backend/internal/logging"
	"github.com/keepwaifu/backend/internal/services"
	"github.com/keepwaifu/backend/internal/storage"
)

var (
	verbose bool
	timeout time.Duration

	cfg  *config.Config
	ds   *storage.DataSources
	core *services.Core
)

var rootCmd = &cobra.Command{
	Use:           "charmctl",
	Short:         "Maintenance commands for charms, leaderboards and profiles",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logging.Setup(level, true)

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConnectTimeout+time.Second)
		defer cancel()
		ds = storage.Open(ctx, cfg)
		core = services.NewCore(ds, cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if core != nil {
			core.Sync.Wait()
		}
		if ds != nil {
			ds.Close(context.Background())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall command timeout")

	rootCmd.AddCommand(balanceCmd, rebuildCmd, snapshotCmd, profileCmd, inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
