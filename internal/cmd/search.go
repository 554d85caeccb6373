package cmd

import (
	"github.com/spf13/cobra"

	"github.com/maxchen228/linker/internal/models"
)

// NewSearchCommand creates 'linker search', a ranked keyword lookup over
// key point, phrase, correction and explanation text.
func NewSearchCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search knowledge points by keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := mustApp()
			points, err := a.svc.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			printPointsTable(cmd.OutOrStdout(), points)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}

// NewListCommand creates 'linker list', which lists knowledge points by
// category, or the points due for review when --due is set.
func NewListCommand() *cobra.Command {
	var (
		category string
		subtype  string
		due      bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge points by category, or those due for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := mustApp()

			if due {
				points, err := a.svc.GetReviewCandidates(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printPointsTable(cmd.OutOrStdout(), points)
				return nil
			}

			cat, err := models.ParseCategory(category)
			if err != nil {
				return err
			}
			var subtypePtr *string
			if subtype != "" {
				subtypePtr = &subtype
			}
			points, err := a.svc.FindByCategory(cmd.Context(), cat, subtypePtr)
			if err != nil {
				return err
			}
			printPointsTable(cmd.OutOrStdout(), points)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", string(models.CategorySystematic), "category to list (systematic, isolated, enhancement, other)")
	cmd.Flags().StringVar(&subtype, "subtype", "", "optional subtype filter")
	cmd.Flags().BoolVar(&due, "due", false, "list points currently due for review instead")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results for --due")

	return cmd
}
