// Package reporting renders summaries of stored scoring runs.
package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/scoring"
	"wallet-score-lab/internal/storage"
)

// DefaultTopN is the number of wallets listed in a report.
const DefaultTopN = 20

// Generator produces reports from stored runs.
type Generator struct {
	scoreStore   storage.ScoreStore
	featureStore storage.FeatureStore // optional
	topN         int
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(scoreStore storage.ScoreStore, featureStore storage.FeatureStore) *Generator {
	return &Generator{
		scoreStore:   scoreStore,
		featureStore: featureStore,
		topN:         DefaultTopN,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTopN sets how many wallets the report lists.
func (g *Generator) WithTopN(n int) *Generator {
	if n >= 0 {
		g.topN = n
	}
	return g
}

// GenerateLatest reports on the most recent run.
func (g *Generator) GenerateLatest(ctx context.Context) (*Report, error) {
	run, err := g.scoreStore.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return g.generate(ctx, run)
}

// Generate reports on the given run. Returns storage.ErrNotFound for an unknown run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.scoreStore.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return g.generate(ctx, run)
}

func (g *Generator) generate(ctx context.Context, run *domain.ScoringRun) (*Report, error) {
	scores, err := g.scoreStore.GetByRun(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("load scores of run %s: %w", run.RunID, err)
	}

	var vectors []*domain.WalletFeatureVector
	if g.featureStore != nil {
		vectors, err = g.featureStore.GetByRun(ctx, run.RunID)
		if err != nil {
			return nil, fmt.Errorf("load features of run %s: %w", run.RunID, err)
		}
	}
	byWallet := make(map[string]*domain.WalletFeatureVector, len(vectors))
	for _, v := range vectors {
		byWallet[v.Wallet] = v
	}

	report := &Report{
		GeneratedAt: g.now(),
		Run: RunInfo{
			RunID:          run.RunID,
			ScoredAt:       run.ScoredAt,
			WalletCount:    run.WalletCount,
			PopulationHash: run.PopulationHash,
		},
		Summary:      Summarize(scores),
		Distribution: Distribution(scores),
		TopWallets:   topWallets(scores, byWallet, g.topN),
	}

	if len(vectors) > 0 {
		bounds := scoring.ComputeBounds(vectors)
		report.FeatureRanges = featureRanges(bounds)
		report.DataQuality.DegenerateFeatures = bounds.DegenerateFeatures()
	}
	if g.featureStore != nil {
		for _, s := range scores {
			if _, ok := byWallet[s.WalletID]; !ok {
				report.DataQuality.MissingFeatures++
			}
		}
	}

	if len(scores) == 1 {
		report.DataQuality.Warnings = append(report.DataQuality.Warnings,
			"single-wallet population: every feature is degenerate and the score is 0")
	}
	if run.WalletCount != len(scores) {
		report.DataQuality.Warnings = append(report.DataQuality.Warnings,
			fmt.Sprintf("run records %d wallets but %d scores are stored", run.WalletCount, len(scores)))
	}

	return report, nil
}

// Summarize computes score statistics. Percentiles use linear interpolation.
func Summarize(scores []*domain.ScoreRecord) ScoreSummary {
	if len(scores) == 0 {
		return ScoreSummary{}
	}
	values := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		values[i] = float64(s.Score)
		sum += values[i]
	}
	sort.Float64s(values)

	return ScoreSummary{
		Wallets: len(values),
		Mean:    sum / float64(len(values)),
		Median:  percentile(values, 0.5),
		P10:     percentile(values, 0.1),
		P90:     percentile(values, 0.9),
		Min:     int(values[0]),
		Max:     int(values[len(values)-1]),
	}
}

// percentile expects sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Distribution counts scores in ten buckets of 100 points.
func Distribution(scores []*domain.ScoreRecord) []BucketRow {
	rows := make([]BucketRow, 10)
	for i := range rows {
		rows[i] = BucketRow{Low: i * 100, High: i*100 + 99}
	}
	rows[9].High = domain.MaxScore

	for _, s := range scores {
		idx := s.Score / 100
		if idx > 9 {
			idx = 9
		}
		if idx < 0 {
			idx = 0
		}
		rows[idx].Count++
	}
	return rows
}

// TopScores returns up to n scores, highest first, ties broken by wallet.
func TopScores(scores []*domain.ScoreRecord, n int) []*domain.ScoreRecord {
	sorted := make([]*domain.ScoreRecord, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].WalletID < sorted[j].WalletID
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

func topWallets(scores []*domain.ScoreRecord, features map[string]*domain.WalletFeatureVector, n int) []WalletRow {
	top := TopScores(scores, n)
	rows := make([]WalletRow, len(top))
	for i, s := range top {
		rows[i] = WalletRow{Wallet: s.WalletID, Score: s.Score}
		if v, ok := features[s.WalletID]; ok {
			rows[i].HasFeatures = true
			rows[i].TxCount = v.TxCount
			rows[i].TotalValue = v.TotalValue.String()
			rows[i].ActiveDays = v.ActiveDays
			rows[i].WalletAgeDays = v.WalletAgeDays
		}
	}
	return rows
}

func featureRanges(b scoring.Bounds) []FeatureRangeRow {
	row := func(name string, weight fmt.Stringer, r scoring.Range) FeatureRangeRow {
		return FeatureRangeRow{
			Feature:    name,
			Weight:     weight.String(),
			Min:        r.Min.String(),
			Max:        r.Max.String(),
			Degenerate: r.Degenerate(),
		}
	}
	return []FeatureRangeRow{
		row(scoring.FeatureTxCount, scoring.WeightTxCount, b.TxCount),
		row(scoring.FeatureTotalValue, scoring.WeightTotalValue, b.TotalValue),
		row(scoring.FeatureActiveDays, scoring.WeightActiveDays, b.ActiveDays),
		row(scoring.FeatureWalletAgeDays, scoring.WeightWalletAgeDays, b.WalletAgeDays),
	}
}
