package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vigor/server/internal/app"
	"vigor/server/internal/config"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Config{Env: env}); err != nil {
		log.Fatalf("%v", err)
	}
}
