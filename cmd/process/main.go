// Package main aggregates the decoded transactions table into per-wallet
// features and writes the processed table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wallet-score-lab/internal/app"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	in := flag.String("in", "", "Decoded transactions table (overrides paths.decoded)")
	out := flag.String("out", "", "Processed features table (overrides paths.processed)")
	flag.Parse()

	if err := run(*configPath, *in, *out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, in, out string) error {
	cfg, logger, err := app.Load(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if in != "" {
		cfg.Paths.Decoded = in
	}
	if out != "" {
		cfg.Paths.Processed = out
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.Process(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Processed %s:\n", res.Input)
	fmt.Printf("  Rows: %d (%d on target contracts)\n", res.Rows, res.Kept)
	fmt.Printf("  Wallets: %d (%d excluded for bad values)\n", res.Wallets, res.WalletsFailed)
	fmt.Printf("  Output: %s\n", cfg.Paths.Processed)
	return nil
}
