package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletFeatureVector holds per-wallet behavioral features.
// Corresponds to the processed features table.
type WalletFeatureVector struct {
	Wallet        string
	TxCount       int64
	TotalValue    decimal.Decimal // sum of transaction values, >= 0
	FirstTx       time.Time
	LastTx        time.Time
	ActiveDays    int64 // floor(last-first in days) + 1
	WalletAgeDays int64 // floor(last-first in days)
}

// DaySpan returns the number of whole days between two instants.
func DaySpan(first, last time.Time) int64 {
	return int64(last.Sub(first) / (24 * time.Hour))
}

// NewWalletFeatureVector derives the day-span features from first/last activity.
func NewWalletFeatureVector(wallet string, txCount int64, total decimal.Decimal, first, last time.Time) *WalletFeatureVector {
	span := DaySpan(first, last)
	return &WalletFeatureVector{
		Wallet:        wallet,
		TxCount:       txCount,
		TotalValue:    total,
		FirstTx:       first,
		LastTx:        last,
		ActiveDays:    span + 1,
		WalletAgeDays: span,
	}
}
