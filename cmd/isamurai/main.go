package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/manthysbr/isamurai-go/cmd/isamurai/commands"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewApp(version).Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
