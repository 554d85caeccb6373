package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxchen228/linker/internal/models"
	"github.com/maxchen228/linker/internal/service"
)

// NewAddCommand creates 'linker add', the entry point for recording a
// graded practice attempt via Service.AddFromMistake.
func NewAddCommand() *cobra.Command {
	var (
		userID        string
		chinese       string
		answer        string
		mode          string
		reviewPointID int64
		correct       bool
		summary       string
		phrase        string
		correction    string
		explanation   string
		severity      string
		categoryHint  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a graded practice attempt",
		Long: `Record one graded practice attempt. When the attempt was generally
correct and --mode=review, pass --review-point-id to record a review success
against that point instead of creating a new one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				userID = service.DefaultUserID
			}

			grading := models.Grading{IsGenerallyCorrect: correct}
			if !correct {
				ea := models.ErrorAnalysis{
					KeyPointSummary: summary,
					OriginalPhrase:  phrase,
					Correction:      correction,
					Explanation:     explanation,
					Severity:        models.Severity(severity),
				}
				if categoryHint != "" {
					cat, err := models.ParseCategory(categoryHint)
					if err != nil {
						return err
					}
					ea.Category = &cat
				}
				grading.ErrorAnalysis = []models.ErrorAnalysis{ea}
			}

			a := mustApp()
			result, err := a.svc.AddFromMistake(cmd.Context(), userID, reviewPointID, chinese, answer, grading, mode)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.ReviewRecorded {
				fmt.Fprintln(out, "recorded review success")
			}
			for _, r := range result.Results {
				switch r.Outcome {
				case service.OutcomeCreated:
					fmt.Fprintf(out, "created knowledge point #%d (%s/%s)\n", r.Point.ID, r.Point.Category, r.Point.Subtype)
				case service.OutcomeReviewedExisting:
					fmt.Fprintf(out, "appended review to existing point #%d\n", r.Point.ID)
				case service.OutcomeDenied:
					fmt.Fprintf(out, "denied by daily limit: %d/%d used today\n", r.DenialStatus.UsedCount, r.DenialStatus.DailyLimit)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id, defaults to the single-operator identity")
	cmd.Flags().StringVar(&chinese, "chinese", "", "the prompt sentence")
	cmd.Flags().StringVar(&answer, "answer", "", "the learner's answer")
	cmd.Flags().StringVar(&mode, "mode", "practice", "practice mode (\"practice\" or \"review\")")
	cmd.Flags().Int64Var(&reviewPointID, "review-point-id", 0, "knowledge point being reviewed, required when --mode=review and --correct")
	cmd.Flags().BoolVar(&correct, "correct", false, "the attempt was generally correct")
	cmd.Flags().StringVar(&summary, "summary", "", "key point summary for the error")
	cmd.Flags().StringVar(&phrase, "phrase", "", "the learner's original (incorrect) phrase")
	cmd.Flags().StringVar(&correction, "correction", "", "the corrected phrase")
	cmd.Flags().StringVar(&explanation, "explanation", "", "why the phrase was wrong")
	cmd.Flags().StringVar(&severity, "severity", string(models.SeverityMajor), "\"minor\" or \"major\"")
	cmd.Flags().StringVar(&categoryHint, "category", "", "optional category hint, overriding automatic classification")

	return cmd
}
