// Package cli provides the sercha-rag command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// version is set at build time through SetVersion.
var version = "dev"

// Services are the wired application services the commands drive.
type Services struct {
	Processor driving.DocumentProcessor
	Search    driving.SearchService
	Query     driving.QueryService
	Settings  driving.SettingsService

	// Documents is the document metadata store, used to register new files.
	Documents driven.DocumentMetadataStore

	// Index is the chunk index, cleared for documents removed on disk.
	Index driven.IndexStore

	// Tasks runs background processing for the HTTP server.
	Tasks *services.TaskRunner

	// BlobRoot is the filesystem blob store root, watched by the watch command.
	BlobRoot string

	// ServerAddr is the configured HTTP listen address.
	ServerAddr string
}

// BootstrapOptions are the root flags that shape service construction.
type BootstrapOptions struct {
	ConfigDir string
	Ephemeral bool
}

// Bootstrap builds the services. The returned closer releases them.
type Bootstrap func(ctx context.Context, opts BootstrapOptions) (*Services, func() error, error)

var (
	bootstrap Bootstrap
	svc       *Services
	closer    func() error

	verbose   bool
	configDir string
	ephemeral bool
)

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Document indexing and question answering over your files",
	Long: `sercha-rag indexes documents into searchable chunks and answers questions
from them using vector, keyword or hybrid retrieval and an LLM provider.

Run 'sercha-rag serve' to start the HTTP API, or use the document, search and
query commands directly.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.sercha-rag)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep all state in memory")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap registers the function that builds services on first use.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs already-built services, bypassing the bootstrap.
func SetServices(s *Services) {
	svc = s
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if cmd.Annotations[skipBootstrap] == "true" || svc != nil || bootstrap == nil {
		return nil
	}

	built, closeFn, err := bootstrap(cmd.Context(), BootstrapOptions{ConfigDir: configDir, Ephemeral: ephemeral})
	if err != nil {
		return fmt.Errorf("initialising services: %w", err)
	}
	svc, closer = built, closeFn
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if closer == nil {
		return nil
	}
	err := closer()
	svc, closer = nil, nil
	return err
}

var errNotConfigured = errors.New("services not configured")

// requireServices returns the installed services or errNotConfigured.
func requireServices() (*Services, error) {
	if svc == nil {
		return nil, errNotConfigured
	}
	return svc, nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// styled renders s with style only when stdout is a terminal.
func styled(cmd *cobra.Command, style lipgloss.Style, s string) string {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return s
	}
	return style.Render(s)
}
