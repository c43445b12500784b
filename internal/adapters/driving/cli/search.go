package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	searchProject   string
	searchLimit     int
	searchThreshold float64
	searchDocuments []string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search indexed chunks",
	Long: `Retrieves chunks from a project's index.

  vector   - semantic similarity over chunk embeddings
  keyword  - lexical match on all query terms
  hybrid   - both, fused with a keyword boost
  similar  - previously asked questions close to the query`,
}

func newSearchModeCmd(mode domain.RetrievalMode) *cobra.Command {
	return &cobra.Command{
		Use:   string(mode) + " [query]",
		Short: mode.Description() + " search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, mode, args[0])
		},
	}
}

var searchSimilarCmd = &cobra.Command{
	Use:   "similar [query]",
	Short: "Find previously asked questions similar to the query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchSimilar,
}

func init() {
	flags := searchCmd.PersistentFlags()
	flags.StringVarP(&searchProject, "project", "p", "", "project ID (required)")
	flags.IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default from settings)")
	flags.Float64Var(&searchThreshold, "threshold", -1, "minimum vector similarity (default from settings)")
	flags.StringSliceVar(&searchDocuments, "document", nil, "restrict to these document IDs")
	flags.BoolVar(&searchJSON, "json", false, "output results as JSON")
	_ = searchCmd.MarkPersistentFlagRequired("project")

	for _, mode := range domain.AllRetrievalModes() {
		searchCmd.AddCommand(newSearchModeCmd(mode))
	}
	searchCmd.AddCommand(searchSimilarCmd)
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, mode domain.RetrievalMode, query string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	req := domain.SearchRequest{
		ProjectID: searchProject,
		Query:     query,
		Limit:     searchLimit,
		Filters:   domain.SearchFilters{DocumentIDs: searchDocuments},
		Mode:      mode,
	}
	if searchThreshold >= 0 {
		threshold := searchThreshold
		req.Threshold = &threshold
	}

	results, err := s.Search.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, results.Results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchTable(cmd *cobra.Command, results *domain.SearchResults) error {
	if results.Total() == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results.Results {
		title := r.Metadata.DocumentName
		if title == "" {
			title = r.DocumentID
		}
		cmd.Printf("  [%d] %s #%d (%.3f, %s)\n", i+1, styled(cmd, titleStyle, title), r.ChunkIndex, r.Score, r.Source)
		cmd.Printf("      %s\n\n", truncate(r.Content, 200))
	}
	return nil
}

func runSearchSimilar(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	similar, err := s.Search.SimilarQueries(cmd.Context(), searchProject, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("similar query search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, similar)
	}
	if len(similar) == 0 {
		cmd.Println("No similar queries found.")
		return nil
	}
	for i, q := range similar {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, q.Text, q.Score)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
