// Package main re-resolves unknown transaction actions from their event logs
// and writes the decoded transactions table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-score-lab/internal/app"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	in := flag.String("in", "", "Raw transactions table (overrides paths.raw)")
	out := flag.String("out", "", "Decoded transactions table (overrides paths.decoded)")
	interval := flag.Duration("interval", 0, "Minimum delay between lookups (overrides resolver.min_interval)")
	flag.Parse()

	if err := run(*configPath, *in, *out, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, in, out string, interval time.Duration) error {
	cfg, logger, err := app.Load(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if in != "" {
		cfg.Paths.Raw = in
	}
	if out != "" {
		cfg.Paths.Decoded = out
	}
	if interval > 0 {
		cfg.Resolver.MinInterval = interval
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.Decode(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Updated %d unknown actions\n", res.Updated)
	fmt.Printf("  Rows: %d, attempted: %d, no decoded name: %d, lookup failures: %d\n",
		res.Rows, res.Attempted, res.Unresolved, res.Failed)
	fmt.Printf("  Output: %s\n", cfg.Paths.Decoded)
	if res.Partial {
		fmt.Println("  Interrupted: remaining rows copied unchanged")
	}
	return nil
}
