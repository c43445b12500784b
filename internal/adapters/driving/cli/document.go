package cli

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

var (
	processForce  bool
	chunksLimit   int
	chunksOffset  int
	chunksJSON    bool
	addProjectID  string
	addMIMEType   string
	addName       string
	addAndProcess bool
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Process and inspect documents",
	Long:  `Commands to run the indexing pipeline for a document and inspect its chunks.`,
}

var documentAddCmd = &cobra.Command{
	Use:   "add [source-ref]",
	Short: "Register a document for processing",
	Long: `Registers a document in a project. The source reference is a path under the
blob root or a gs://, gdrive:// or https:// URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentAdd,
}

var documentProcessCmd = &cobra.Command{
	Use:   "process [document-id]",
	Short: "Run the indexing pipeline for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentProcess,
}

var documentReprocessCmd = &cobra.Command{
	Use:   "reprocess [document-id]",
	Short: "Remove a document's chunks and index it again",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentReprocess,
}

var documentStatusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show a document's processing status",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentStatus,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [document-id]",
	Short: "List a document's indexed chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

func init() {
	documentAddCmd.Flags().StringVarP(&addProjectID, "project", "p", "", "project ID (required)")
	documentAddCmd.Flags().StringVar(&addMIMEType, "mime-type", "", "MIME type (default from file extension)")
	documentAddCmd.Flags().StringVar(&addName, "name", "", "display name (default file name)")
	documentAddCmd.Flags().BoolVar(&addAndProcess, "process", false, "process the document after adding it")
	_ = documentAddCmd.MarkFlagRequired("project")

	documentProcessCmd.Flags().BoolVarP(&processForce, "force", "f", false, "process even if already completed")

	documentChunksCmd.Flags().IntVarP(&chunksLimit, "limit", "n", services.DefaultChunkPageSize, "maximum number of chunks")
	documentChunksCmd.Flags().IntVar(&chunksOffset, "offset", 0, "number of chunks to skip")
	documentChunksCmd.Flags().BoolVar(&chunksJSON, "json", false, "output chunks as JSON")

	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentProcessCmd)
	documentCmd.AddCommand(documentReprocessCmd)
	documentCmd.AddCommand(documentStatusCmd)
	documentCmd.AddCommand(documentChunksCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Documents == nil {
		return fmt.Errorf("document store: %w", errNotConfigured)
	}

	doc := newDocument(addProjectID, args[0], addName, addMIMEType)
	if err := s.Documents.SaveDocument(cmd.Context(), doc); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	cmd.Printf("Added document %s (%s)\n", doc.ID, doc.Name)

	if !addAndProcess {
		return nil
	}
	outcome, err := s.Processor.Process(cmd.Context(), doc.ID, false)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	printOutcome(cmd, outcome.DocumentID, outcome.Status, outcome.ChunkCount)
	return nil
}

// newDocument builds a pending document for ref. Name and MIME type default
// from the reference's base name and extension.
func newDocument(projectID, ref, name, mimeType string) *domain.Document {
	base := filepath.Base(strings.TrimPrefix(ref, "file://"))
	if name == "" {
		name = base
	}
	if mimeType == "" {
		mimeType = mimeTypeFor(base)
	}
	return &domain.Document{
		ID:        services.NewID(),
		ProjectID: projectID,
		Name:      name,
		MIMEType:  mimeType,
		SourceRef: ref,
		Status:    domain.StatusPending,
	}
}

func mimeTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt", "":
		return "text/plain"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

func runDocumentProcess(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	outcome, err := s.Processor.Process(cmd.Context(), args[0], processForce)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	if outcome.Skipped {
		cmd.Printf("Document %s already processed (use --force to run again)\n", outcome.DocumentID)
		return nil
	}
	printOutcome(cmd, outcome.DocumentID, outcome.Status, outcome.ChunkCount)
	return nil
}

func runDocumentReprocess(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	outcome, err := s.Processor.Reprocess(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("reprocessing failed: %w", err)
	}
	printOutcome(cmd, outcome.DocumentID, outcome.Status, outcome.ChunkCount)
	return nil
}

func printOutcome(cmd *cobra.Command, id string, status domain.DocumentStatus, chunks int) {
	cmd.Printf("Document %s: %s (%d chunks)\n", id, styled(cmd, okStyle, string(status)), chunks)
}

func runDocumentStatus(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	doc, err := s.Processor.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	cmd.Println(styled(cmd, titleStyle, doc.Name))
	cmd.Printf("  ID:      %s\n", doc.ID)
	cmd.Printf("  Project: %s\n", doc.ProjectID)
	cmd.Printf("  Status:  %s\n", doc.Status)
	if doc.ProcessedAt != nil {
		cmd.Printf("  Processed: %s\n", doc.ProcessedAt.Format("2006-01-02 15:04:05"))
	}
	if doc.ErrorMessage != "" {
		cmd.Printf("  Error:   %s\n", styled(cmd, errStyle, doc.ErrorMessage))
	}
	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	page, err := s.Processor.Chunks(cmd.Context(), args[0], chunksLimit, chunksOffset)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	if chunksJSON {
		return printJSON(cmd, page)
	}

	if len(page.Chunks) == 0 {
		cmd.Println("No chunks found.")
		return nil
	}
	cmd.Printf("Showing %d-%d of %d chunks\n\n", page.Offset+1, page.Offset+len(page.Chunks), page.Total)
	for _, c := range page.Chunks {
		cmd.Println(styled(cmd, dimStyle, fmt.Sprintf("[%d] %d-%d", c.Index, c.StartOffset, c.EndOffset)))
		cmd.Printf("  %s\n\n", truncate(c.Content, 200))
	}
	return nil
}

// truncate shortens s to at most n runes, appending "..." when cut.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
