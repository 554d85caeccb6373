package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/maxchen228/linker/internal/models"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid point id %q: %w", s, err)
	}
	return id, nil
}

// pad right-pads s to width display cells. Key points often carry
// full-width CJK text, which fmt's %-Ns padding miscounts; runewidth
// measures terminal cells instead of runes.
func pad(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// printPointsTable renders a compact listing shared by search/list/review-due.
func printPointsTable(w io.Writer, points []*models.KnowledgePoint) {
	if len(points) == 0 {
		fmt.Fprintln(w, "(no matching knowledge points)")
		return
	}
	fmt.Fprintf(w, "%s %s %s %s %s\n", pad("ID", 5), pad("CATEGORY", 12), pad("SUBTYPE", 14), pad("MASTERY", 8), "KEY POINT")
	for _, kp := range points {
		fmt.Fprintf(w, "%s %s %s %s %s\n",
			pad(strconv.FormatInt(kp.ID, 10), 5),
			pad(string(kp.Category), 12),
			pad(kp.Subtype, 14),
			pad(fmt.Sprintf("%.2f", kp.MasteryLevel), 8),
			kp.KeyPoint)
	}
}
