package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using PostgreSQL.
type FeatureStore struct {
	pool *Pool
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(pool *Pool) *FeatureStore {
	return &FeatureStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

const selectFeatureColumns = `
	SELECT wallet, tx_count, total_value::text, first_tx, last_tx, active_days, wallet_age_days
	FROM wallet_features
`

// InsertBulk stores the vectors of a run atomically.
func (s *FeatureStore) InsertBulk(ctx context.Context, runID string, vectors []*domain.WalletFeatureVector) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(vectors) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO wallet_features (
			run_id, wallet, tx_count, total_value, first_tx, last_tx, active_days, wallet_age_days
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
	`

	for _, v := range vectors {
		_, err := tx.Exec(ctx, query,
			runID,
			v.Wallet,
			v.TxCount,
			v.TotalValue.String(),
			v.FirstTx.UTC(),
			v.LastTx.UTC(),
			v.ActiveDays,
			v.WalletAgeDays,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert feature vector in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRun retrieves the vectors of a run ordered by wallet.
func (s *FeatureStore) GetByRun(ctx context.Context, runID string) ([]*domain.WalletFeatureVector, error) {
	query := selectFeatureColumns + `
		WHERE run_id = $1
		ORDER BY wallet ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get features by run: %w", err)
	}
	defer rows.Close()

	var vectors []*domain.WalletFeatureVector
	for rows.Next() {
		v, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}
	return vectors, nil
}

// GetByWallet retrieves one wallet's vector in a run.
func (s *FeatureStore) GetByWallet(ctx context.Context, runID, wallet string) (*domain.WalletFeatureVector, error) {
	query := selectFeatureColumns + `
		WHERE run_id = $1 AND wallet = $2
	`

	v, err := scanFeature(s.pool.QueryRow(ctx, query, runID, wallet))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get feature by wallet: %w", err)
	}
	return v, nil
}

func scanFeature(row pgx.Row) (*domain.WalletFeatureVector, error) {
	var (
		v        domain.WalletFeatureVector
		totalStr string
		first    time.Time
		last     time.Time
	)

	err := row.Scan(
		&v.Wallet,
		&v.TxCount,
		&totalStr,
		&first,
		&last,
		&v.ActiveDays,
		&v.WalletAgeDays,
	)
	if err != nil {
		return nil, err
	}

	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return nil, fmt.Errorf("parse total_value %q: %w", totalStr, err)
	}
	v.TotalValue = total
	v.FirstTx = first.UTC()
	v.LastTx = last.UTC()
	return &v, nil
}
