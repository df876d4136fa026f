// Package main scores the wallets of the processed features table on a
// 0-1000 scale relative to their population.
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
	in := flag.String("in", "", "Processed features table (overrides paths.processed)")
	out := flag.String("out", "", "Scores table (overrides paths.scores)")
	top := flag.Int("top", 10, "Number of top wallets to print")
	reportPath := flag.String("report", "", "Write a Markdown run report to this path (optional)")
	flag.Parse()

	if err := run(*configPath, *in, *out, *top, *reportPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, in, out string, top int, reportPath string) error {
	cfg, logger, err := app.Load(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if in != "" {
		cfg.Paths.Processed = in
	}
	if out != "" {
		cfg.Paths.Scores = out
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.Score(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Scored wallets saved to %s\n", cfg.Paths.Scores)
	fmt.Printf("  Run: %s (%d wallets)\n", res.Run.RunID, res.Run.WalletCount)
	for _, s := range reporting.TopScores(res.Scores, top) {
		fmt.Printf("  %s  %4d\n", s.WalletID, s.Score)
	}

	if reportPath != "" {
		gen := reporting.NewGenerator(p.Stores.Scores, p.Stores.Features)
		report, err := gen.Generate(ctx, res.Run.RunID)
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
