// Package cmdutil holds CLI-facing rendering helpers shared by
// internal/cmd's subcommands: turning a statistics/recommendation snapshot
// into a markdown report, and that report into HTML when a shareable
// artifact is needed instead of a terminal dump.
package cmdutil

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/maxchen228/linker/internal/service"
	"github.com/maxchen228/linker/internal/statistics"
)

// RenderStatisticsMarkdown builds the canonical markdown report for
// `linker stats`. It is the single source of truth for the report's shape;
// RenderHTML only reformats this same text.
func RenderStatisticsMarkdown(stats statistics.Stats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Knowledge Base Statistics\n\n")
	fmt.Fprintf(&b, "- **Knowledge points:** %d\n", stats.KnowledgePoints)
	fmt.Fprintf(&b, "- **Total practices:** %d\n", stats.TotalPractices)
	fmt.Fprintf(&b, "- **Correct / Mistakes:** %d / %d\n", stats.CorrectCount, stats.MistakeCount)
	fmt.Fprintf(&b, "- **Accuracy:** %.1f%%\n", stats.Accuracy*100)
	fmt.Fprintf(&b, "- **Average mastery:** %.2f\n", stats.AvgMastery)
	fmt.Fprintf(&b, "- **Due for review:** %d\n\n", stats.DueReviews)

	fmt.Fprintf(&b, "## By category\n\n")
	fmt.Fprintf(&b, "| Category | Count |\n|---|---|\n")
	for _, c := range stats.CategoryDistribution {
		fmt.Fprintf(&b, "| %s | %d |\n", c.Label, c.Count)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## By mastery tier\n\n")
	fmt.Fprintf(&b, "| Tier | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| Beginner (<0.3) | %d |\n", stats.PointsByMastery.Beginner)
	fmt.Fprintf(&b, "| Intermediate (0.3-0.7) | %d |\n", stats.PointsByMastery.Intermediate)
	fmt.Fprintf(&b, "| Advanced (>=0.7) | %d |\n", stats.PointsByMastery.Advanced)

	if len(stats.SubtypeDistribution) > 0 {
		b.WriteString("\n## By subtype\n\n")
		b.WriteString("| Subtype | Count |\n|---|---|\n")
		for name, count := range stats.SubtypeDistribution {
			fmt.Fprintf(&b, "| %s | %d |\n", name, count)
		}
	}

	return b.String()
}

// RenderRecommendationsMarkdown appends a focus-areas section, used when
// `linker stats --recommend` is passed.
func RenderRecommendationsMarkdown(recs service.Recommendations) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Recommendations (difficulty level %d)\n\n", recs.DifficultyLevel)
	for _, r := range recs.Recommendations {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	if len(recs.FocusCategories) > 0 {
		b.WriteString("\nFocus categories: ")
		labels := make([]string, len(recs.FocusCategories))
		for i, c := range recs.FocusCategories {
			labels[i] = c.DisplayLabel()
		}
		b.WriteString(strings.Join(labels, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderHTML parses markdown and renders it to a standalone HTML fragment,
// for `linker stats --format=html` and any other report that needs to be
// shared outside a terminal.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("cmdutil: render markdown: %w", err)
	}
	return buf.String(), nil
}
