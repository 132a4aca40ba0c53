package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/bootiful-ai/carina-rag/controller"
)

func main() {
	// Load .env file from the current directory
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on environment variables.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := controller.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		logrus.Fatalf("FATAL: %v", err)
	}
}
