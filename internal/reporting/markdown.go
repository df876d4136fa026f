package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Wallet Score Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Scored: %s | Wallets: %d\n\n",
		r.Run.RunID, r.Run.ScoredAt.UTC().Format(time.RFC3339), r.Run.WalletCount))
	if r.Run.PopulationHash != "" {
		sb.WriteString(fmt.Sprintf("Population: `%s`\n\n", r.Run.PopulationHash))
	}

	// Summary
	sb.WriteString("## Score Summary\n\n")
	if r.Summary.Wallets > 0 {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Wallets | %d |\n", r.Summary.Wallets))
		sb.WriteString(fmt.Sprintf("| Mean | %.2f |\n", r.Summary.Mean))
		sb.WriteString(fmt.Sprintf("| Median | %.2f |\n", r.Summary.Median))
		sb.WriteString(fmt.Sprintf("| P10 | %.2f |\n", r.Summary.P10))
		sb.WriteString(fmt.Sprintf("| P90 | %.2f |\n", r.Summary.P90))
		sb.WriteString(fmt.Sprintf("| Min | %d |\n", r.Summary.Min))
		sb.WriteString(fmt.Sprintf("| Max | %d |\n", r.Summary.Max))
	} else {
		sb.WriteString("No wallets scored in this run.\n")
	}
	sb.WriteString("\n")

	// Distribution
	sb.WriteString("## Distribution\n\n")
	sb.WriteString("| Range | Wallets |\n")
	sb.WriteString("|-------|---------|\n")
	for _, b := range r.Distribution {
		sb.WriteString(fmt.Sprintf("| %d-%d | %d |\n", b.Low, b.High, b.Count))
	}
	sb.WriteString("\n")

	// Feature ranges
	sb.WriteString("## Feature Ranges\n\n")
	if len(r.FeatureRanges) > 0 {
		sb.WriteString("| Feature | Weight | Min | Max | Spread |\n")
		sb.WriteString("|---------|--------|-----|-----|--------|\n")
		for _, f := range r.FeatureRanges {
			spread := "yes"
			if f.Degenerate {
				spread = "none"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n", f.Feature, f.Weight, f.Min, f.Max, spread))
		}
	} else {
		sb.WriteString("No feature vectors stored for this run.\n")
	}
	sb.WriteString("\n")

	// Top wallets
	sb.WriteString("## Top Wallets\n\n")
	if len(r.TopWallets) > 0 {
		sb.WriteString("| Wallet | Score | Tx | Total Value | Active Days | Age Days |\n")
		sb.WriteString("|--------|-------|----|-------------|-------------|----------|\n")
		for _, w := range r.TopWallets {
			if !w.HasFeatures {
				sb.WriteString(fmt.Sprintf("| %s | %d | - | - | - | - |\n", w.Wallet, w.Score))
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %d | %d |\n",
				w.Wallet, w.Score, w.TxCount, w.TotalValue, w.ActiveDays, w.WalletAgeDays))
		}
	} else {
		sb.WriteString("No wallets to list.\n")
	}
	sb.WriteString("\n")

	// Data quality
	q := r.DataQuality
	sb.WriteString("## Data Quality\n\n")
	if len(q.DegenerateFeatures) == 0 && q.MissingFeatures == 0 && len(q.Warnings) == 0 {
		sb.WriteString("No issues found.\n\n")
		return sb.String()
	}
	if len(q.DegenerateFeatures) > 0 {
		sb.WriteString(fmt.Sprintf("- Features without spread (contribute 0): %s\n", strings.Join(q.DegenerateFeatures, ", ")))
	}
	if q.MissingFeatures > 0 {
		sb.WriteString(fmt.Sprintf("- Scored wallets without stored features: %d\n", q.MissingFeatures))
	}
	for _, w := range q.Warnings {
		sb.WriteString(fmt.Sprintf("- %s\n", w))
	}
	sb.WriteString("\n")

	return sb.String()
}
