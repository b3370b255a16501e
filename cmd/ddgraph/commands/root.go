package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	core "ddgraph/internal/app"
	"ddgraph/internal/config"
	"ddgraph/internal/logging"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

var rootCmd = &cobra.Command{
	Use:   "ddgraph",
	Short: "Due diligence dashboard workflow",
	Long: `ddgraph runs the due diligence workflow for portfolio companies:
plan, generate structured and RAG dashboards, evaluate them, scan for risk
signals, ask for human approval when risks are found, and persist the result.`,
	Version:       core.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.LogLevel = logLevel
		}
		if err := logging.Initialize(c.LogLevel); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error:"), err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("DDGRAPH_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(companiesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

// openCore builds the workflow core and returns a release func.
func openCore(ctx context.Context, mode core.ApprovalMode) (*core.App, func(), error) {
	a, err := core.New(ctx, cfg, core.Options{Approval: mode})
	if err != nil {
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(context.Background()); err != nil {
			logging.GetLogger("ddgraph").Warn("Close failed: %v", err)
		}
	}, nil
}
