package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var balanceType string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Read or change a user's charm balance",
}

var balanceGetCmd = &cobra.Command{
	Use:   "get <user_id>",
	Short: "Print the balance and how it was obtained",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		bal, outcome := core.Ledger.Balance(ctx, args[0])
		rank, ranked := core.Ledger.Rank(ctx, args[0], balanceType)
		out := map[string]interface{}{
			"user_id": args[0],
			"balance": bal,
			"outcome": outcome.String(),
		}
		if ranked {
			out["rank"] = rank
		}
		return printJSON(cmd, out)
	},
}

var balanceAddCmd = &cobra.Command{
	Use:   "add <user_id> <delta>",
	Short: "Apply a (possibly negative) delta",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("delta %q: %w", args[1], err)
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		total, ok := core.Ledger.Update(ctx, args[0], delta, balanceType)
		if !ok {
			return fmt.Errorf("update for %s was not applied", args[0])
		}
		return printJSON(cmd, map[string]interface{}{"user_id": args[0], "balance": total})
	},
}

func init() {
	balanceCmd.PersistentFlags().StringVar(&balanceType, "type", "", "category (waifu, husband)")
	balanceCmd.AddCommand(balanceGetCmd, balanceAddCmd)
}
