package main

import (
	"context"
	"facestream/internal/app"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

func init() {
	// OpenCV windows must be driven from the main OS thread.
	runtime.LockOSThread()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Session ended: %v", err)
	}
}
