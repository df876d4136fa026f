package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using ClickHouse.
type FeatureStore struct {
	conn *Conn
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(conn *Conn) *FeatureStore {
	return &FeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

const selectFeatureColumns = `
	SELECT wallet, tx_count, total_value, first_tx, last_tx, active_days, wallet_age_days
	FROM wallet_features FINAL
`

// InsertBulk stores the vectors of a run in one batch.
// ReplacingMergeTree does not reject duplicates, so existence is checked first.
func (s *FeatureStore) InsertBulk(ctx context.Context, runID string, vectors []*domain.WalletFeatureVector) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(vectors) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(vectors))
	for _, v := range vectors {
		if _, ok := seen[v.Wallet]; ok {
			return storage.ErrDuplicateKey
		}
		seen[v.Wallet] = struct{}{}
	}

	existing, err := s.walletsInRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for w := range seen {
		if _, ok := existing[w]; ok {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO wallet_features (
			run_id, wallet, tx_count, total_value, first_tx, last_tx, active_days, wallet_age_days
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, v := range vectors {
		err = batch.Append(
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
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun retrieves the vectors of a run ordered by wallet.
func (s *FeatureStore) GetByRun(ctx context.Context, runID string) ([]*domain.WalletFeatureVector, error) {
	rows, err := s.conn.Query(ctx, selectFeatureColumns+`
		WHERE run_id = ?
		ORDER BY wallet ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query features by run: %w", err)
	}
	defer rows.Close()

	var vectors []*domain.WalletFeatureVector
	for rows.Next() {
		v, err := scanFeature(rows)
		if err != nil {
			return nil, err
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
	rows, err := s.conn.Query(ctx, selectFeatureColumns+`
		WHERE run_id = ? AND wallet = ?
		LIMIT 1
	`, runID, wallet)
	if err != nil {
		return nil, fmt.Errorf("query feature by wallet: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate feature rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}
	return scanFeature(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(row rowScanner) (*domain.WalletFeatureVector, error) {
	var (
		v        domain.WalletFeatureVector
		totalStr string
		first    time.Time
		last     time.Time
	)
	if err := row.Scan(&v.Wallet, &v.TxCount, &totalStr, &first, &last, &v.ActiveDays, &v.WalletAgeDays); err != nil {
		return nil, fmt.Errorf("scan feature row: %w", err)
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

func (s *FeatureStore) walletsInRun(ctx context.Context, runID string) (map[string]struct{}, error) {
	rows, err := s.conn.Query(ctx, `SELECT wallet FROM wallet_features FINAL WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		out[w] = struct{}{}
	}
	return out, rows.Err()
}
