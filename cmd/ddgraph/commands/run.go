package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	core "ddgraph/internal/app"
	"ddgraph/internal/workflow"
)

var (
	runAll         bool
	runConcurrency int
	runAsync       bool
)

var runCmd = &cobra.Command{
	Use:   "run [company_id...]",
	Short: "Run the due diligence workflow",
	Long: `Run the workflow for one or more companies. With --all every company
found under the data directory is processed, bounded by --concurrency.

When a risk is detected and HITL mode is interactive, the operator is asked
on the terminal. In async mode the run is suspended as pending approval and
can be decided later with "ddgraph resume".`,
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every company in the data directory")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "parallel runs for --all (default from config)")
	runCmd.Flags().BoolVar(&runAsync, "async", false, "never prompt; suspend risky runs as pending")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	if !runAll && len(args) == 0 {
		return errors.New("a company id or --all is required")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := core.ApprovalFromConfig
	if runAsync || runAll || len(args) > 1 {
		// concurrent runs cannot share one terminal prompt
		mode = core.ApprovalAsync
	}
	a, release, err := openCore(ctx, mode)
	if err != nil {
		return err
	}
	defer release()

	ids := args
	if runAll {
		if ids, err = a.Companies.CompanyIDs(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("no companies found under %s", cfg.DataDir)
		}
	}

	if len(ids) == 1 {
		out, err := a.Workflow.Run(ctx, ids[0])
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	}

	n := runConcurrency
	if n <= 0 {
		n = cfg.Concurrency
	}
	var failed int
	for _, r := range a.Workflow.RunBatch(ctx, ids, n) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", errStyle.Render("failed"), r.CompanyID, r.Err)
			continue
		}
		printOutcome(cmd.OutOrStdout(), r.Outcome)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(ids))
	}
	return nil
}

func printOutcome(w io.Writer, out *workflow.Outcome) {
	label := okStyle.Render(out.Status)
	switch out.Status {
	case workflow.StatusPending:
		label = warnStyle.Render(out.Status)
	case workflow.StatusRejected:
		label = errStyle.Render(out.Status)
	}
	fmt.Fprintf(w, "%s %s run=%s\n", label, out.CompanyID, out.RunID)
	if out.State != nil {
		fmt.Fprintf(w, "  %s score=%.2f risk=%t branch=%s\n",
			dimStyle.Render("eval"), out.State.EvaluationScore, out.State.RiskDetected, out.State.BranchTaken())
	}
	fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("dashboard"), out.DashboardKey)
	if out.TraceKey != "" {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("trace"), out.TraceKey)
	}
	if out.Status == workflow.StatusPending {
		fmt.Fprintf(w, "  %s ddgraph resume %s %s --decision approve|reject\n", dimStyle.Render("next"), out.CompanyID, out.RunID)
	}
}
