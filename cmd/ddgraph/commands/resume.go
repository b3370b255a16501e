package commands

import (
	"github.com/spf13/cobra"

	core "ddgraph/internal/app"
	"ddgraph/internal/approval"
	"ddgraph/internal/workflow"
)

var (
	resumeDecision string
	resumeBy       string
	resumeNotes    string
)

var resumeCmd = &cobra.Command{
	Use:   "resume <company_id> <run_id>",
	Short: "Apply a decision to a run suspended for approval",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := approval.ParseDecision(resumeDecision)
		if err != nil {
			return err
		}
		a, release, err := openCore(cmd.Context(), core.ApprovalAsync)
		if err != nil {
			return err
		}
		defer release()

		out, err := a.Workflow.ResumeWithReview(cmd.Context(), args[0], args[1], d, workflow.Review{By: resumeBy, Notes: resumeNotes})
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDecision, "decision", "", "approve or reject")
	resumeCmd.Flags().StringVar(&resumeBy, "by", "", "reviewer recorded in the sidecar")
	resumeCmd.Flags().StringVar(&resumeNotes, "notes", "", "review notes")
	_ = resumeCmd.MarkFlagRequired("decision")
}
