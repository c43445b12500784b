package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project-wide operations",
}

var projectReindexCmd = &cobra.Command{
	Use:   "reindex [project-id]",
	Short: "Reprocess every document in a project",
	Long: `Reprocesses every non-deleted document in the project. Documents that fail are
reported and marked failed; the rest are still indexed.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectReindex,
}

func init() {
	projectCmd.AddCommand(projectReindexCmd)
	rootCmd.AddCommand(projectCmd)
}

func runProjectReindex(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	report, err := s.Processor.ReindexProject(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	for _, res := range report.Results {
		if res.Err != nil {
			cmd.Printf("  %s %s: %v\n", styled(cmd, errStyle, "FAIL"), res.DocumentID, res.Err)
			continue
		}
		cmd.Printf("  %s %s (%d chunks)\n", styled(cmd, okStyle, "ok"), res.DocumentID, res.ChunkCount)
	}
	cmd.Printf("\nReindexed project %s: %d succeeded, %d failed\n", report.ProjectID, report.Succeeded(), report.Failed())
	return nil
}
