package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160")).
			Padding(0, 2)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1)
)

// TerminalApprover asks an operator on the controlling terminal.
type TerminalApprover struct {
	In  io.Reader
	Out io.Writer
	// IsTTY reports whether In is attached to a terminal.
	IsTTY func() bool
}

func NewTerminalApprover() *TerminalApprover {
	return &TerminalApprover{
		In:    os.Stdin,
		Out:   os.Stdout,
		IsTTY: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

// Decide prints the risk summary and reads one line. yes/y approves, anything
// else rejects.
func (t *TerminalApprover) Decide(ctx context.Context, req Request) (Status, error) {
	if t.IsTTY != nil && !t.IsTTY() {
		return Pending, ErrNotInteractive
	}
	fmt.Fprintln(t.Out, RenderRequest(req))
	fmt.Fprint(t.Out, "Approve this dashboard? (yes/no): ")

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(t.In).ReadString('\n')
		if err != nil && line == "" {
			errs <- err
			return
		}
		lines <- line
	}()

	select {
	case <-ctx.Done():
		return Pending, nil
	case err := <-errs:
		if err == io.EOF {
			return Pending, ErrNotInteractive
		}
		return Pending, err
	case line := <-lines:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "yes", "y":
			return Approved, nil
		default:
			return Rejected, nil
		}
	}
}

// RenderRequest formats the HITL banner shown to operators.
func RenderRequest(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", req.CompanyID)
	fmt.Fprintf(&b, "Run: %s\n", req.RunID)
	fmt.Fprintf(&b, "Evaluation Score: %.2f\n", req.EvaluationScore)
	b.WriteString("Detected Risks:")
	for i, r := range req.Risks {
		fmt.Fprintf(&b, "\n  %d. %s - %s", i+1, r.Type, r.Description)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		bannerStyle.Render("HUMAN APPROVAL REQUIRED"),
		boxStyle.Render(b.String()),
	)
}
