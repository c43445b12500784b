package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/blob/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

var (
	watchProject  string
	watchDebounce int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index files as they change under the blob root",
	Long: `Watches the filesystem blob root and keeps a project's index in step with it.

New files are registered and processed, modified files are reprocessed and
removed files are marked deleted with their chunks dropped from the index.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchProject, "project", "p", "", "project ID (required)")
	watchCmd.Flags().IntVar(&watchDebounce, "debounce-ms", int(filesystem.DefaultDebounce.Milliseconds()),
		"quiet period before a change is handled")
	_ = watchCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.BlobRoot == "" || s.Documents == nil {
		return fmt.Errorf("watch needs the filesystem blob store: %w", errNotConfigured)
	}

	watcher, err := filesystem.NewWatcher(s.BlobRoot, time.Duration(watchDebounce)*time.Millisecond)
	if err != nil {
		return err
	}

	h := &watchHandler{svc: s, projectID: watchProject}
	cmd.Printf("Watching %s for project %s\n", s.BlobRoot, watchProject)
	return watcher.Run(cmd.Context(), func(c filesystem.Change) {
		if err := h.handle(cmd.Context(), c); err != nil {
			logger.Error("Handling %s of %s: %v", c.Type, c.Ref, err)
			return
		}
		cmd.Printf("%s %s\n", c.Type, c.Ref)
	})
}

// watchHandler applies filesystem changes to one project's documents.
type watchHandler struct {
	svc       *Services
	projectID string
}

func (h *watchHandler) handle(ctx context.Context, c filesystem.Change) error {
	doc, err := h.find(ctx, c.Ref)
	if err != nil {
		return err
	}

	switch c.Type {
	case filesystem.ChangeDeleted:
		if doc == nil {
			return nil
		}
		return h.remove(ctx, doc)
	default:
		if doc == nil {
			doc = newDocument(h.projectID, c.Ref, "", "")
			if err := h.svc.Documents.SaveDocument(ctx, doc); err != nil {
				return fmt.Errorf("registering %s: %w", c.Ref, err)
			}
			_, err = h.svc.Processor.Process(ctx, doc.ID, false)
			return err
		}
		if doc.Status == domain.StatusProcessing {
			logger.Warn("Skipping %s: document %s is already processing", c.Ref, doc.ID)
			return nil
		}
		_, err = h.svc.Processor.Reprocess(ctx, doc.ID)
		return err
	}
}

// find returns the live project document whose source is ref, or nil.
func (h *watchHandler) find(ctx context.Context, ref string) (*domain.Document, error) {
	docs, err := h.svc.Documents.ListProjectDocuments(ctx, h.projectID)
	if err != nil {
		return nil, fmt.Errorf("listing project documents: %w", err)
	}
	for i := range docs {
		if !docs[i].Deleted && (docs[i].SourceRef == ref || docs[i].SourceRef == "file://"+ref) {
			return &docs[i], nil
		}
	}
	return nil, nil
}

func (h *watchHandler) remove(ctx context.Context, doc *domain.Document) error {
	doc.Deleted = true
	if err := h.svc.Documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("marking %s deleted: %w", doc.ID, err)
	}
	if h.svc.Index == nil {
		return nil
	}
	n, err := h.svc.Index.DeleteByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("removing chunks of %s: %w", doc.ID, err)
	}
	logger.Info("Removed %d chunks of deleted document %s", n, doc.ID)
	return nil
}
