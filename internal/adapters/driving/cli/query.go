package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	queryUser       string
	queryProject    string
	queryLimit      int
	queryMode       string
	queryProvider   string
	queryModel      string
	queryMaxTokens  int
	queryLanguage   string
	queryJSON       bool
	feedbackComment string
	listLimit       int
	listOffset      int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask questions and manage query history",
}

var queryAskCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from a project's documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueryAsk,
}

var queryFeedbackCmd = &cobra.Command{
	Use:   "feedback [query-id] [response-id] [rating]",
	Short: "Rate an answer from 1 to 5",
	Args:  cobra.ExactArgs(3),
	RunE:  runQueryFeedback,
}

var queryGetCmd = &cobra.Command{
	Use:   "get [query-id]",
	Short: "Show a query and its answers",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueryGet,
}

var queryListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List a project's queries, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueryList,
}

var queryDeleteCmd = &cobra.Command{
	Use:   "delete [query-id]",
	Short: "Delete a query and its answers",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueryDelete,
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryUser, "user", "u", defaultUser(), "user the queries belong to")

	f := queryAskCmd.Flags()
	f.StringVarP(&queryProject, "project", "p", "", "project ID (required)")
	f.IntVarP(&queryLimit, "limit", "n", 0, "number of chunks used as context")
	f.StringVar(&queryMode, "mode", "", "retrieval mode: vector, keyword or hybrid")
	f.StringVar(&queryProvider, "provider", "", "answer provider override")
	f.StringVar(&queryModel, "model", "", "answer model override")
	f.IntVar(&queryMaxTokens, "max-tokens", 0, "maximum answer tokens")
	f.StringVar(&queryLanguage, "language", "", "answer language")
	f.BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	_ = queryAskCmd.MarkFlagRequired("project")

	queryFeedbackCmd.Flags().StringVar(&feedbackComment, "comment", "", "optional comment")

	queryListCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "maximum number of queries")
	queryListCmd.Flags().IntVar(&listOffset, "offset", 0, "number of queries to skip")

	queryCmd.AddCommand(queryAskCmd)
	queryCmd.AddCommand(queryFeedbackCmd)
	queryCmd.AddCommand(queryGetCmd)
	queryCmd.AddCommand(queryListCmd)
	queryCmd.AddCommand(queryDeleteCmd)
	rootCmd.AddCommand(queryCmd)
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func runQueryAsk(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	opts := domain.QueryOptions{
		Language:  queryLanguage,
		Limit:     queryLimit,
		Mode:      domain.RetrievalMode(queryMode),
		Provider:  domain.AIProvider(queryProvider),
		Model:     queryModel,
		MaxTokens: queryMaxTokens,
	}

	answer, err := s.Query.Submit(cmd.Context(), queryProject, queryUser, args[0], opts)
	if errors.Is(err, domain.ErrNoRelevantContent) {
		cmd.Println("No relevant content found for this question.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, answer)
	}
	printAnswer(cmd, answer)
	return nil
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	cmd.Println(answer.Answer)
	cmd.Println()
	if len(answer.Sources) > 0 {
		cmd.Println(styled(cmd, titleStyle, "Sources:"))
		for i, src := range answer.Sources {
			cmd.Printf("  [%d] %s (%.3f)\n", i+1, src.Title, src.Relevance)
		}
	}
	cmd.Println(styled(cmd, dimStyle, fmt.Sprintf("query %s, response %s", answer.ID, answer.ResponseID)))
}

func runQueryFeedback(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	rating := parseChoice(args[2], 5, 0)
	if rating == 0 {
		return domain.NewValidationError("rating", "must be between 1 and 5")
	}

	feedback := domain.Feedback{Rating: rating, Comment: feedbackComment}
	if err := s.Query.SubmitFeedback(cmd.Context(), args[0], args[1], feedback); err != nil {
		return fmt.Errorf("failed to submit feedback: %w", err)
	}
	cmd.Println("Feedback recorded.")
	return nil
}

func runQueryGet(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	q, err := s.Query.Get(cmd.Context(), queryUser, args[0])
	if err != nil {
		return fmt.Errorf("failed to get query: %w", err)
	}
	printQuery(cmd, q)
	return nil
}

func printQuery(cmd *cobra.Command, q *domain.QueryWithResponses) {
	cmd.Printf("%s %s\n", styled(cmd, titleStyle, "Q:"), q.Query.Text)
	cmd.Println(styled(cmd, dimStyle, fmt.Sprintf("  %s, %s", q.Query.ID, q.Query.CreatedAt.Format("2006-01-02 15:04:05"))))
	for _, r := range q.Responses {
		cmd.Printf("%s %s\n", styled(cmd, titleStyle, "A:"), r.AnswerText)
		meta := fmt.Sprintf("  %s, %s", r.ID, r.ModelIdentifier)
		if r.FeedbackRating != nil {
			meta += fmt.Sprintf(", rated %d", *r.FeedbackRating)
		}
		cmd.Println(styled(cmd, dimStyle, meta))
	}
}

func runQueryList(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	queries, err := s.Query.List(cmd.Context(), args[0], listLimit, listOffset)
	if err != nil {
		return fmt.Errorf("failed to list queries: %w", err)
	}
	if len(queries) == 0 {
		cmd.Println("No queries found.")
		return nil
	}
	for i := range queries {
		printQuery(cmd, &queries[i])
		cmd.Println()
	}
	return nil
}

func runQueryDelete(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	if err := s.Query.Delete(cmd.Context(), queryUser, args[0]); err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}
	cmd.Printf("Deleted query %s\n", args[0])
	return nil
}
