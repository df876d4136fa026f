package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

// ScoreStore implements storage.ScoreStore using PostgreSQL.
type ScoreStore struct {
	pool *Pool
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(pool *Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

const selectRunColumns = `
	SELECT run_id, scored_at, wallet_count, population_hash
	FROM scoring_runs
`

// InsertRun stores a run together with its scores atomically.
func (s *ScoreStore) InsertRun(ctx context.Context, run *domain.ScoringRun, scores []*domain.ScoreRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO scoring_runs (run_id, scored_at, wallet_count, population_hash)
		VALUES ($1, $2, $3, $4)
	`, run.RunID, run.ScoredAt.UTC(), run.WalletCount, run.PopulationHash)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert scoring run: %w", err)
	}

	if len(scores) > 0 {
		batch := &pgx.Batch{}
		for _, sc := range scores {
			batch.Queue(`INSERT INTO wallet_scores (run_id, wallet, score) VALUES ($1, $2, $3)`,
				run.RunID, sc.WalletID, sc.Score)
		}
		br := tx.SendBatch(ctx, batch)
		for range scores {
			if _, err := br.Exec(); err != nil {
				br.Close()
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert wallet score: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close score batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *ScoreStore) GetRun(ctx context.Context, runID string) (*domain.ScoringRun, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, selectRunColumns+` WHERE run_id = $1`, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get scoring run: %w", err)
	}
	return run, nil
}

// LatestRun retrieves the most recently scored run.
func (s *ScoreStore) LatestRun(ctx context.Context) (*domain.ScoringRun, error) {
	query := selectRunColumns + `
		ORDER BY scored_at DESC, run_id DESC
		LIMIT 1
	`

	run, err := scanRun(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest scoring run: %w", err)
	}
	return run, nil
}

// GetByRun retrieves the scores of a run ordered by wallet.
func (s *ScoreStore) GetByRun(ctx context.Context, runID string) ([]*domain.ScoreRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wallet, score
		FROM wallet_scores
		WHERE run_id = $1
		ORDER BY wallet ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get scores by run: %w", err)
	}
	defer rows.Close()

	var records []*domain.ScoreRecord
	for rows.Next() {
		var r domain.ScoreRecord
		if err := rows.Scan(&r.WalletID, &r.Score); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}
	return records, nil
}

// GetScore retrieves one wallet's score in a run.
func (s *ScoreStore) GetScore(ctx context.Context, runID, wallet string) (*domain.ScoreRecord, error) {
	var r domain.ScoreRecord
	err := s.pool.QueryRow(ctx, `
		SELECT wallet, score
		FROM wallet_scores
		WHERE run_id = $1 AND wallet = $2
	`, runID, wallet).Scan(&r.WalletID, &r.Score)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet score: %w", err)
	}
	return &r, nil
}

func scanRun(row pgx.Row) (*domain.ScoringRun, error) {
	var run domain.ScoringRun
	if err := row.Scan(&run.RunID, &run.ScoredAt, &run.WalletCount, &run.PopulationHash); err != nil {
		return nil, err
	}
	run.ScoredAt = run.ScoredAt.UTC()
	return &run, nil
}
