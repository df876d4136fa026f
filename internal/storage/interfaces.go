package storage

import (
	"context"

	"wallet-score-lab/internal/domain"
)

// TransactionStore provides access to filtered lending transactions.
// Rows are keyed by (wallet, tx_hash).
type TransactionStore interface {
	// Insert adds a new row. Returns ErrDuplicateKey if (wallet, tx_hash) exists.
	Insert(ctx context.Context, r *domain.TransactionRecord) error

	// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.TransactionRecord) error

	// UpdateAction sets the action of a row whose action is unknown.
	// A known action is never overwritten. Returns ErrNotFound if the row does not exist.
	UpdateAction(ctx context.Context, wallet, txHash, action string) error

	// GetByWallet retrieves the rows of a wallet, ordered by timestamp ASC, tx_hash ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.TransactionRecord, error)

	// GetAll retrieves all rows, ordered by wallet, timestamp, tx_hash.
	GetAll(ctx context.Context) ([]*domain.TransactionRecord, error)
}

// FeatureStore provides access to feature vectors grouped by scoring run.
type FeatureStore interface {
	// InsertBulk stores the vectors of a run atomically.
	// Returns ErrDuplicateKey if (run_id, wallet) exists.
	InsertBulk(ctx context.Context, runID string, vectors []*domain.WalletFeatureVector) error

	// GetByRun retrieves the vectors of a run ordered by wallet.
	GetByRun(ctx context.Context, runID string) ([]*domain.WalletFeatureVector, error)

	// GetByWallet retrieves one wallet's vector in a run. Returns ErrNotFound if not exists.
	GetByWallet(ctx context.Context, runID, wallet string) (*domain.WalletFeatureVector, error)
}

// ScoreStore provides access to scoring runs and their scores.
type ScoreStore interface {
	// InsertRun stores a run together with its scores atomically.
	// Returns ErrDuplicateKey if run_id exists.
	InsertRun(ctx context.Context, run *domain.ScoringRun, scores []*domain.ScoreRecord) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.ScoringRun, error)

	// LatestRun retrieves the most recently scored run. Returns ErrNotFound if none.
	LatestRun(ctx context.Context) (*domain.ScoringRun, error)

	// GetByRun retrieves the scores of a run ordered by wallet.
	GetByRun(ctx context.Context, runID string) ([]*domain.ScoreRecord, error)

	// GetScore retrieves one wallet's score in a run. Returns ErrNotFound if not exists.
	GetScore(ctx context.Context, runID, wallet string) (*domain.ScoreRecord, error)
}
