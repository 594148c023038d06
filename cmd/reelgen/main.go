package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"reelgen/cmd/reelgen/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.New().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
