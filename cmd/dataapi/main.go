package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/aecdata/pipeline/internal/api"
	"github.com/aecdata/pipeline/internal/app"
	"github.com/aecdata/pipeline/internal/server"
	"github.com/aecdata/pipeline/pkg/logger"
)

const defaultPort = 8002

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("aec-data-api", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server, api.QueryServiceName); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	stack, err := server.Bootstrap(ctx, cfg, server.Needs{Service: api.QueryServiceName, Cache: true}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Shutdown(context.Background()); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	router, err := api.NewQueryRouter(cfg, stack.Dependencies())
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	return server.Serve(ctx, cfg.Server, defaultPort, router, log)
}
