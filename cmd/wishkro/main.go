package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wishkro/wishkro-go/internal/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx, os.Args[1:])
	if err := application.Close(); err != nil {
		application.Logger().Error("error closing application", "error", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "wishkro: %v\n", runErr)
		os.Exit(1)
	}
}
