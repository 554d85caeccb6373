package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxchen228/linker/internal/dailylimit"
	"github.com/maxchen228/linker/internal/service"
)

// NewLimitCommand creates 'linker limit', exposing the daily-limit
// governor's read-only status check and its per-user settings update.
func NewLimitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limit",
		Short: "Inspect or configure the daily knowledge-point limit",
	}
	cmd.AddCommand(newLimitStatusCommand())
	cmd.AddCommand(newLimitSetCommand())
	return cmd
}

func newLimitStatusCommand() *cobra.Command {
	var (
		userID  string
		subtype string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's admission status for a gated category",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := mustApp()
			status, err := a.svc.CheckDailyLimit(cmd.Context(), userID, subtype)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !status.LimitEnabled {
				fmt.Fprintln(out, "daily limit is disabled")
			}
			fmt.Fprintf(out, "status: %s, used %d of %d today (%d remaining)\n",
				status.Status, status.UsedCount, status.DailyLimit, status.Remaining)
			for name, count := range status.Breakdown {
				fmt.Fprintf(out, "  %-12s %d\n", name, count)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", service.DefaultUserID, "user id")
	cmd.Flags().StringVar(&subtype, "category", "isolated", "gated category to check (isolated or enhancement)")
	return cmd
}

func newLimitSetCommand() *cobra.Command {
	var (
		userID  string
		limit   int
		enabled bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the per-user daily limit settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 || limit > 50 {
				return fmt.Errorf("daily limit must be between 1 and 50, got %d", limit)
			}
			a := mustApp()
			err := a.svc.UpdateDailyLimitSettings(cmd.Context(), dailylimit.UserSettings{
				UserID:       userID,
				DailyLimit:   limit,
				LimitEnabled: enabled,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daily limit for %s set to %d (enabled: %v)\n", userID, limit, enabled)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", service.DefaultUserID, "user id")
	cmd.Flags().IntVar(&limit, "limit", 15, "daily knowledge-point limit (1-50)")
	cmd.Flags().BoolVar(&enabled, "enabled", false, "whether the limit is enforced")
	return cmd
}
