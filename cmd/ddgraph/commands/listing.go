package commands

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	core "ddgraph/internal/app"
)

var pendingCompany string

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List dashboards waiting for approval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, release, err := openCore(cmd.Context(), core.ApprovalAsync)
		if err != nil {
			return err
		}
		defer release()

		items, err := a.Workflow.ListPending(cmd.Context(), pendingCompany)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintln(w, dimStyle.Render("no pending approvals"))
			return nil
		}
		fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("%d pending approval(s)", len(items))))
		for _, it := range items {
			fmt.Fprintf(w, "%s %s run=%s score=%.2f generated=%s\n",
				warnStyle.Render("pending"), it.CompanyID, it.RunID, it.EvaluationScore, it.GeneratedAt)
			fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("draft"), it.DashboardKey)
		}
		return nil
	},
}

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List company ids found under the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, release, err := openCore(cmd.Context(), core.ApprovalAsync)
		if err != nil {
			return err
		}
		defer release()

		ids, err := a.Companies.CompanyIDs()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show <company_id>",
	Short: "Render the latest approved dashboard for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openCore(cmd.Context(), core.ApprovalAsync)
		if err != nil {
			return err
		}
		defer release()

		key, data, err := a.Workflow.LatestDashboard(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("no dashboard for %s: %w", args[0], err)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, dimStyle.Render(key))
		if showRaw {
			_, err = w.Write(data)
			return err
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return err
		}
		out, err := r.Render(string(data))
		if err != nil {
			return err
		}
		fmt.Fprint(w, out)
		return nil
	},
}

func init() {
	pendingCmd.Flags().StringVar(&pendingCompany, "company", "", "only list this company")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print markdown without rendering")
}
