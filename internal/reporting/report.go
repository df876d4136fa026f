package reporting

import "time"

// Report summarizes one scoring run.
type Report struct {
	GeneratedAt time.Time
	Run         RunInfo

	Summary      ScoreSummary
	Distribution []BucketRow // ten buckets of 100 points, the last one closed at 1000

	// Feature spread across the population, in the order the score weighs them.
	FeatureRanges []FeatureRangeRow

	// Highest scores first, ties by wallet.
	TopWallets []WalletRow

	DataQuality DataQualitySection
}

// RunInfo identifies the reported run.
type RunInfo struct {
	RunID          string
	ScoredAt       time.Time
	WalletCount    int
	PopulationHash string
}

// ScoreSummary holds score statistics. All zero for an empty run.
type ScoreSummary struct {
	Wallets int
	Mean    float64
	Median  float64
	P10     float64
	P90     float64
	Min     int
	Max     int
}

// BucketRow counts scores in [Low, High].
type BucketRow struct {
	Low   int
	High  int
	Count int
}

// FeatureRangeRow is the population min/max of one feature.
type FeatureRangeRow struct {
	Feature    string
	Weight     string
	Min        string
	Max        string
	Degenerate bool
}

// WalletRow is one scored wallet with its features when available.
type WalletRow struct {
	Wallet        string
	Score         int
	HasFeatures   bool
	TxCount       int64
	TotalValue    string
	ActiveDays    int64
	WalletAgeDays int64
}

// DataQualitySection lists conditions that make scores less informative.
type DataQualitySection struct {
	DegenerateFeatures []string
	MissingFeatures    int // scored wallets without a stored feature vector
	Warnings           []string
}
