package domain

import "time"

// Score range.
const (
	MinScore = 0
	MaxScore = 1000
)

// ScoreRecord is the scoring output for one wallet.
// Corresponds to the scores table.
type ScoreRecord struct {
	WalletID string
	Score    int
}

// ScoringRun identifies one scoring batch. Scores are relative to the
// population of their run and are never compared across runs.
type ScoringRun struct {
	RunID          string
	ScoredAt       time.Time
	WalletCount    int
	PopulationHash string // fingerprint of the scored wallet set
}
