// Package main fetches the transactions of every wallet in the wallets table
// and writes the rows that touch a target lending contract.
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
	wallets := flag.String("wallets", "", "Wallets table (overrides paths.wallets)")
	out := flag.String("out", "", "Raw transactions table (overrides paths.raw)")
	workers := flag.Int("workers", 0, "Wallets fetched concurrently (overrides fetch.workers)")
	flag.Parse()

	if err := run(*configPath, *wallets, *out, *workers); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, wallets, out string, workers int) error {
	cfg, logger, err := app.Load(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if wallets != "" {
		cfg.Paths.Wallets = wallets
	}
	if out != "" {
		cfg.Paths.Raw = out
	}
	if workers > 0 {
		cfg.Fetch.Workers = workers
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

	res, err := p.Fetch(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Fetch completed:\n")
	fmt.Printf("  Wallets: %d (%d failed, %d skipped, %d invalid rows)\n",
		res.Wallets, res.WalletsFailed, res.WalletsSkipped, res.InvalidRows)
	fmt.Printf("  Transactions: %d -> %s\n", res.Transactions, cfg.Paths.Raw)
	if res.Transactions == 0 {
		fmt.Println("  No transactions found")
	}
	if res.Partial {
		fmt.Println("  Interrupted: output is partial")
	}
	return nil
}
