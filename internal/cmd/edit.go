package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewEditCommand creates 'linker edit', applying field updates to a
// knowledge point and recording a version-history entry.
func NewEditCommand() *cobra.Command {
	var set map[string]string

	cmd := &cobra.Command{
		Use:   "edit <point-id>",
		Short: "Edit fields on a knowledge point",
		Long:  `Apply one or more --set key=value updates (e.g. --set category=isolated --set custom_notes="reviewed twice").`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if len(set) == 0 {
				return fmt.Errorf("at least one --set key=value is required")
			}

			updates := make(map[string]any, len(set))
			for k, v := range set {
				updates[k] = v
			}

			a := mustApp()
			entry, err := a.svc.Edit(cmd.Context(), id, updates)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "changed fields: %v\n", entry.ChangedFields)
			return nil
		},
	}

	cmd.Flags().StringToStringVar(&set, "set", nil, "field=value pairs to update")
	return cmd
}

// NewDeleteCommand creates 'linker delete', soft-deleting a knowledge
// point.
func NewDeleteCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "delete <point-id>",
		Short: "Soft-delete a knowledge point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a := mustApp()
			ok, err := a.svc.SoftDelete(cmd.Context(), id, reason)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "point #%d deleted\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "point #%d not found\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded alongside the deletion")
	return cmd
}

// NewRestoreCommand creates 'linker restore', undoing a soft delete.
func NewRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <point-id>",
		Short: "Restore a soft-deleted knowledge point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a := mustApp()
			ok, err := a.svc.Restore(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "point #%d restored\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "point #%d not found or not deleted\n", id)
			}
			return nil
		},
	}
}

// NewPurgeCommand creates 'linker purge', the manual trigger for the
// retention sweep that 'linker serve' also runs nightly.
func NewPurgeCommand() *cobra.Command {
	var (
		days   int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently delete soft-deleted points past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := mustApp()
			result, err := a.svc.PermanentDeleteOld(cmd.Context(), days, dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scanned %d, preserved %d, deleted %d\n", result.Scanned, result.Preserved, len(result.DeletedIDs))
			if dryRun {
				fmt.Fprintf(out, "dry run: %v\n", result.DeletedIDs)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "retention window in days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	return cmd
}
