package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const insertTransactionQuery = `
	INSERT INTO lending_transactions (
		wallet, tx_hash, block_signed_at, from_address, to_address, contract_label, action, value
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const selectTransactionColumns = `
	SELECT wallet, tx_hash, block_signed_at, from_address, to_address, contract_label, action, value
	FROM lending_transactions
`

// Insert adds a new row. Returns ErrDuplicateKey if (wallet, tx_hash) exists.
func (s *TransactionStore) Insert(ctx context.Context, r *domain.TransactionRecord) error {
	_, err := s.pool.Exec(ctx, insertTransactionQuery, transactionArgs(r)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(ctx context.Context, records []*domain.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if _, err := tx.Exec(ctx, insertTransactionQuery, transactionArgs(r)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert transaction in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateAction sets the action of a row whose action is unknown.
func (s *TransactionStore) UpdateAction(ctx context.Context, wallet, txHash, action string) error {
	query := `
		UPDATE lending_transactions
		SET action = $3
		WHERE wallet = $1 AND tx_hash = $2 AND action = $4
	`

	tag, err := s.pool.Exec(ctx, query, wallet, txHash, action, domain.ActionUnknown)
	if err != nil {
		return fmt.Errorf("update transaction action: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Either the row is missing or it already carries a known action.
	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lending_transactions WHERE wallet = $1 AND tx_hash = $2)`,
		wallet, txHash,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check transaction exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}

// GetByWallet retrieves the rows of a wallet, ordered by timestamp ASC, tx_hash ASC.
func (s *TransactionStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.TransactionRecord, error) {
	query := selectTransactionColumns + `
		WHERE wallet = $1
		ORDER BY block_signed_at ASC, tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get transactions by wallet: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetAll retrieves all rows, ordered by wallet, timestamp, tx_hash.
func (s *TransactionStore) GetAll(ctx context.Context) ([]*domain.TransactionRecord, error) {
	query := selectTransactionColumns + `
		ORDER BY wallet ASC, block_signed_at ASC, tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func transactionArgs(r *domain.TransactionRecord) []any {
	return []any{
		r.Wallet,
		r.TxHash,
		r.Timestamp.UTC(),
		r.From,
		r.To,
		r.ContractLabel,
		r.Action,
		r.Value,
	}
}

// scanTransactions scans multiple rows into a slice of TransactionRecord.
func scanTransactions(rows pgx.Rows) ([]*domain.TransactionRecord, error) {
	var records []*domain.TransactionRecord

	for rows.Next() {
		var r domain.TransactionRecord
		err := rows.Scan(
			&r.Wallet,
			&r.TxHash,
			&r.Timestamp,
			&r.From,
			&r.To,
			&r.ContractLabel,
			&r.Action,
			&r.Value,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return records, nil
}
