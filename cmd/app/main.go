package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pipeline-console/internal/bootstrap"
	"pipeline-console/internal/config"
)

func main() {
	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, config.ListenAddr(nil)); err != nil {
		log.Fatalf("serve app: %v", err)
	}
}
