package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewReviewCommand creates 'linker review', which records the outcome of a
// scheduled review practice against an existing knowledge point.
func NewReviewCommand() *cobra.Command {
	var (
		chinese string
		answer  string
		correct string
		isOK    bool
	)

	cmd := &cobra.Command{
		Use:   "review <point-id>",
		Short: "Record a review outcome for an existing knowledge point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a := mustApp()
			if isOK {
				kp, err := a.svc.AddReviewSuccess(cmd.Context(), id, chinese, answer, correct)
				if err != nil {
					return err
				}
				if kp == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "point #%d could not be updated right now; try again shortly\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "point #%d mastery now %.2f\n", kp.ID, kp.MasteryLevel)
				return nil
			}

			kp, err := a.svc.UpdateKnowledgePoint(cmd.Context(), id, false)
			if err != nil {
				return err
			}
			if kp == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "point #%d could not be updated right now; try again shortly\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "point #%d mastery now %.2f (mistake #%d)\n", kp.ID, kp.MasteryLevel, kp.MistakeCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&isOK, "ok", false, "the review attempt was correct")
	cmd.Flags().StringVar(&chinese, "chinese", "", "the prompt sentence (required with --ok)")
	cmd.Flags().StringVar(&answer, "answer", "", "the learner's answer (required with --ok)")
	cmd.Flags().StringVar(&correct, "correct-answer", "", "the correct answer text (required with --ok)")

	return cmd
}
