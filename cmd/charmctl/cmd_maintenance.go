package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keepwaifu/backend/internal/models"
	"github.com/keepwaifu/backend/internal/services"
)

var (
	rebuildType   string
	rebuildDry    bool
	snapshotLimit int
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute a leaderboard sorted set from the document stores",
	Long: `Without --type, every registered profile's balance is written into
the global set. With --type, the per-game item counts become the scores of
that category's set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rebuildType != "" && !cfg.HasCategory(rebuildType) {
			return fmt.Errorf("unknown category %q (configured: %v)", rebuildType, cfg.Categories)
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := core.Leaderboard.Rebuild(ctx, rebuildType, rebuildDry)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage the precomputed top list",
}

var snapshotRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Copy the global leaderboard with resolved profiles into top_global",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		n, err := core.Leaderboard.RefreshSnapshot(ctx, snapshotLimit)
		if err != nil && n == 0 {
			return err
		}
		out := map[string]interface{}{"written": n}
		if err != nil {
			out["error"] = err.Error()
		}
		return printJSON(cmd, out)
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile resolution",
}

var profileResolveCmd = &cobra.Command{
	Use:   "resolve <user_id>",
	Short: "Resolve and persist a profile from every source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		prof, outcome := core.Resolver.Resolve(ctx, args[0], models.ProfileHints{})
		return printJSON(cmd, struct {
			Profile models.Profile `json:"profile"`
			Outcome string         `json:"outcome"`
		}{prof, outcome.String()})
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <user_id>",
	Short: "Dump the raw document every source holds for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return printJSON(cmd, core.Inspector.Inspect(ctx, args[0]))
	},
}

func init() {
	rebuildCmd.Flags().StringVar(&rebuildType, "type", "", "category to rebuild (empty for global)")
	rebuildCmd.Flags().BoolVar(&rebuildDry, "dry", false, "compute without writing")

	snapshotRefreshCmd.Flags().IntVar(&snapshotLimit, "limit", services.MaxTopLimit, "rows to copy")
	snapshotCmd.AddCommand(snapshotRefreshCmd)

	profileCmd.AddCommand(profileResolveCmd)
}
