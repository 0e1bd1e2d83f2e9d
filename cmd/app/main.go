package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"FinCast/internal/di"
	"FinCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "app initialization failed: %v\n", err)
		os.Exit(1)
	}

	// Run blocks until SIGINT/SIGTERM.
	runErr := app.Run(context.Background())
	cleanup()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "app error: %v\n", runErr)
		os.Exit(1)
	}
}
