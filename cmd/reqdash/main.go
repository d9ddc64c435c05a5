// Package main is the entry point for the reqdash CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"reqdash/internal/backend/googletasks"
	"reqdash/internal/backend/supabase"
	"reqdash/internal/cli"
	"reqdash/internal/commands"
	"reqdash/internal/config"
	"reqdash/internal/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		switch cfg.Backend {
		case config.BackendGoogleTasks:
			return googletasks.New(cfg)
		default:
			return supabase.New(cfg)
		}
	}

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)
	dispatcher.Interactive = term.IsTerminal(int(os.Stdout.Fd()))

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
