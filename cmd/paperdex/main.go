package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/markdave123-py/paperdex/internal/app"
	"github.com/markdave123-py/paperdex/internal/cli"
	"github.com/markdave123-py/paperdex/internal/config"
)

func main() {
	// first signal cancels the batch; stages already running finish
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	root := cli.NewRootCmd(cli.Deps{
		Ingestor:  application.DocProcessor,
		Library:   application.Library,
		Retrieval: application.Retrieval,
	})
	// cobra's Print helpers default to stderr
	root.SetOut(os.Stdout)
	err = root.ExecuteContext(ctx)
	application.Close()
	if err != nil {
		os.Exit(1)
	}
}
