package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui"
)

var (
	tuiProject string
	tuiUser    string
)

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for one project.

Ask questions and read cited answers, or switch to the search view to
inspect the passages retrieval returns.

Controls:
  Enter    - Ask / Search
  Tab      - Switch between ask and search
  Ctrl+T   - Cycle retrieval mode
  Ctrl+N   - New question
  ↑/↓      - Navigate sources
  F1       - Help
  Ctrl+C   - Quit`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVarP(&tuiProject, "project", "p", "", "project to ask about")
	tuiCmd.Flags().StringVarP(&tuiUser, "user", "u", defaultUser(), "user that owns the questions")
	_ = tuiCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	s, err := requireServices()
	if err != nil {
		return err
	}

	app, err := tui.NewApp(&tui.Ports{
		Query:     s.Query,
		Search:    s.Search,
		ProjectID: tuiProject,
		UserID:    tuiUser,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	if err := app.WithContext(cmd.Context()).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
