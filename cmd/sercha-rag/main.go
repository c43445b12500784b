// Command sercha-rag indexes documents and answers questions about them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := file.LoadDotEnv(".env"); err != nil {
		logger.Warn("reading .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBootstrap(build)

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
