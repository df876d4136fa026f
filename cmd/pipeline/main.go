// Package main runs the full scoring pipeline once:
// fetch → decode → process → score.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wallet-score-lab/internal/app"
	"wallet-score-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	wallets := flag.String("wallets", "", "Wallets table (overrides paths.wallets)")
	reportPath := flag.String("report", "", "Write a Markdown run report to this path (optional)")
	verbose := flag.Bool("verbose", false, "Print per-wallet errors")
	flag.Parse()

	if err := run(*configPath, *wallets, *reportPath, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, wallets, reportPath string, verbose bool) error {
	cfg, logger, err := app.Load(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if wallets != "" {
		cfg.Paths.Wallets = wallets
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	// Create context with cancellation for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Println("=== Wallet Score Pipeline ===")
	result, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Pipeline completed:\n")
	fmt.Printf("  Wallets fetched: %d (%d failed)\n", result.Fetch.Wallets-result.Fetch.WalletsFailed-result.Fetch.WalletsSkipped, result.Fetch.WalletsFailed)
	fmt.Printf("  Transactions: %d\n", result.Fetch.Transactions)
	fmt.Printf("  Actions decoded: %d of %d unknown\n", result.Decode.Updated, result.Decode.Attempted)
	fmt.Printf("  Wallets with features: %d\n", result.Process.Wallets)
	fmt.Printf("  Run: %s, %d wallets scored -> %s\n", result.Score.Run.RunID, len(result.Score.Scores), cfg.Paths.Scores)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		if verbose {
			for _, e := range result.Errors {
				fmt.Printf("    - %s\n", e)
			}
		}
	}

	if reportPath != "" {
		report, err := reporting.NewGenerator(p.Stores.Scores, p.Stores.Features).Generate(ctx, result.Score.Run.RunID)
		if err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
		if err := os.WriteFile(reportPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("  Report: %s\n", reportPath)
	}
	return nil
}
