package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxchen228/linker/internal/cmdutil"
)

// NewStatsCommand creates 'linker stats', rendering the canonical
// statistics snapshot (and optionally recommendations) as text, markdown,
// or HTML.
func NewStatsCommand() *cobra.Command {
	var (
		format    string
		recommend bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := mustApp()
			stats, err := a.svc.GetStatistics(cmd.Context())
			if err != nil {
				return err
			}

			markdown := cmdutil.RenderStatisticsMarkdown(stats)
			if recommend {
				recs, err := a.svc.GetRecommendations(cmd.Context())
				if err != nil {
					return err
				}
				markdown += "\n" + cmdutil.RenderRecommendationsMarkdown(recs)
			}

			out := cmd.OutOrStdout()
			switch format {
			case "markdown":
				fmt.Fprintln(out, markdown)
			case "html":
				html, err := cmdutil.RenderHTML(markdown)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, html)
			default:
				fmt.Fprintf(out, "knowledge points: %d, practices: %d, accuracy: %.1f%%, due: %d\n",
					stats.KnowledgePoints, stats.TotalPractices, stats.Accuracy*100, stats.DueReviews)
				for _, c := range stats.CategoryDistribution {
					fmt.Fprintf(out, "  %-12s %d\n", c.Category, c.Count)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, markdown, html")
	cmd.Flags().BoolVar(&recommend, "recommend", false, "append study recommendations")

	return cmd
}
