package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/config"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/logging"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/interfaces/cli/commands"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.App.Env, cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand(cfg, logger).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
