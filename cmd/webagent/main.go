// -- cmd/webagent/main.go --
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/InvokerMing/WebAgent/cmd"
)

func main() {
	// API keys commonly live in a local .env during development; a missing
	// file is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.ExecuteContext(ctx)
}
