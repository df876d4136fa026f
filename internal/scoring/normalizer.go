// Package scoring maps wallet feature vectors onto a population-relative
// 0..1000 credit score.
package scoring

import (
	"sort"

	"github.com/shopspring/decimal"

	"wallet-score-lab/internal/domain"
)

// Feature names, as used in logs and metrics.
const (
	FeatureTxCount       = "tx_count"
	FeatureTotalValue    = "total_value"
	FeatureActiveDays    = "active_days"
	FeatureWalletAgeDays = "wallet_age_days"
)

// Composite weights. They sum to 1.
var (
	WeightTxCount       = decimal.RequireFromString("0.30")
	WeightTotalValue    = decimal.RequireFromString("0.30")
	WeightActiveDays    = decimal.RequireFromString("0.20")
	WeightWalletAgeDays = decimal.RequireFromString("0.20")
)

var (
	scale    = decimal.NewFromInt(domain.MaxScore)
	minScore = decimal.NewFromInt(domain.MinScore)
	maxScore = decimal.NewFromInt(domain.MaxScore)
)

// Range is the population minimum and maximum of one feature.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Degenerate reports whether every wallet has the same value.
func (r Range) Degenerate() bool {
	return r.Max.Equal(r.Min)
}

// Normalize maps v into [0,1]. A degenerate range yields 0.
func (r Range) Normalize(v decimal.Decimal) decimal.Decimal {
	if r.Degenerate() {
		return decimal.Zero
	}
	return v.Sub(r.Min).Div(r.Max.Sub(r.Min))
}

func (r Range) extend(v decimal.Decimal) Range {
	if v.LessThan(r.Min) {
		r.Min = v
	}
	if v.GreaterThan(r.Max) {
		r.Max = v
	}
	return r
}

// Bounds holds the per-feature ranges of a scoring population.
type Bounds struct {
	TxCount       Range
	TotalValue    Range
	ActiveDays    Range
	WalletAgeDays Range
}

// ComputeBounds scans the population once. An empty population yields
// all-zero ranges.
func ComputeBounds(vectors []*domain.WalletFeatureVector) Bounds {
	var b Bounds
	for i, v := range vectors {
		tx := decimal.NewFromInt(v.TxCount)
		active := decimal.NewFromInt(v.ActiveDays)
		age := decimal.NewFromInt(v.WalletAgeDays)
		if i == 0 {
			b = Bounds{
				TxCount:       Range{Min: tx, Max: tx},
				TotalValue:    Range{Min: v.TotalValue, Max: v.TotalValue},
				ActiveDays:    Range{Min: active, Max: active},
				WalletAgeDays: Range{Min: age, Max: age},
			}
			continue
		}
		b.TxCount = b.TxCount.extend(tx)
		b.TotalValue = b.TotalValue.extend(v.TotalValue)
		b.ActiveDays = b.ActiveDays.extend(active)
		b.WalletAgeDays = b.WalletAgeDays.extend(age)
	}
	return b
}

// DegenerateFeatures lists the features on which every wallet ties.
func (b Bounds) DegenerateFeatures() []string {
	var out []string
	if b.TxCount.Degenerate() {
		out = append(out, FeatureTxCount)
	}
	if b.TotalValue.Degenerate() {
		out = append(out, FeatureTotalValue)
	}
	if b.ActiveDays.Degenerate() {
		out = append(out, FeatureActiveDays)
	}
	if b.WalletAgeDays.Degenerate() {
		out = append(out, FeatureWalletAgeDays)
	}
	return out
}

// Composite returns the unrounded weighted score of v in [0,1000].
func (b Bounds) Composite(v *domain.WalletFeatureVector) decimal.Decimal {
	sum := WeightTxCount.Mul(b.TxCount.Normalize(decimal.NewFromInt(v.TxCount))).
		Add(WeightTotalValue.Mul(b.TotalValue.Normalize(v.TotalValue))).
		Add(WeightActiveDays.Mul(b.ActiveDays.Normalize(decimal.NewFromInt(v.ActiveDays)))).
		Add(WeightWalletAgeDays.Mul(b.WalletAgeDays.Normalize(decimal.NewFromInt(v.WalletAgeDays))))
	return sum.Mul(scale)
}

// ScoreOf rounds the composite half away from zero and clamps it to the
// score range.
func (b Bounds) ScoreOf(v *domain.WalletFeatureVector) int {
	s := b.Composite(v).Round(0)
	if s.LessThan(minScore) {
		s = minScore
	}
	if s.GreaterThan(maxScore) {
		s = maxScore
	}
	return int(s.IntPart())
}

// Score computes the score of every vector relative to the whole set.
func Score(vectors []*domain.WalletFeatureVector) map[string]int {
	b := ComputeBounds(vectors)
	out := make(map[string]int, len(vectors))
	for _, v := range vectors {
		out[v.Wallet] = b.ScoreOf(v)
	}
	return out
}

// Records computes scores and returns them ordered by wallet.
func Records(vectors []*domain.WalletFeatureVector) []*domain.ScoreRecord {
	scores := Score(vectors)
	out := make([]*domain.ScoreRecord, 0, len(scores))
	for w, s := range scores {
		out = append(out, &domain.ScoreRecord{WalletID: w, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WalletID < out[j].WalletID
	})
	return out
}
