package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// DefaultAddr is the HTTP listen address when none is configured.
const DefaultAddr = ":8080"

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for document processing, search and queries.

Processing requests return 202 and run in the background; poll
GET /documents/{id}/status for the outcome. Query routes require an
X-User-ID header.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings, then "+DefaultAddr+")")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Processor: s.Processor,
		Search:    s.Search,
		Query:     s.Query,
		Tasks:     s.Tasks,
	})
	if err != nil {
		return err
	}

	addr := listenAddr(serveAddr, s.ServerAddr)
	fmt.Fprintf(cmd.OutOrStdout(), "HTTP API listening on %s\n", addr)

	runErr := server.Run(cmd.Context(), addr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Tasks.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Background tasks did not finish: %v", err)
	}
	return runErr
}

func listenAddr(flag, configured string) string {
	switch {
	case flag != "":
		return flag
	case configured != "":
		return configured
	default:
		return DefaultAddr
	}
}
