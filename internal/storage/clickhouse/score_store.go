package clickhouse

import (
	"context"
	"fmt"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

// ScoreStore implements storage.ScoreStore using ClickHouse.
// The run row is written after its scores, so a run visible through
// GetRun or LatestRun always has its full score set.
type ScoreStore struct {
	conn *Conn
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(conn *Conn) *ScoreStore {
	return &ScoreStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// InsertRun stores a run together with its scores.
func (s *ScoreStore) InsertRun(ctx context.Context, run *domain.ScoringRun, scores []*domain.ScoreRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	seen := make(map[string]struct{}, len(scores))
	for _, sc := range scores {
		if _, ok := seen[sc.WalletID]; ok {
			return storage.ErrDuplicateKey
		}
		seen[sc.WalletID] = struct{}{}
	}

	exists, err := s.runExists(ctx, run.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	if len(scores) > 0 {
		batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO wallet_scores (run_id, wallet, score)`)
		if err != nil {
			return fmt.Errorf("prepare batch: %w", err)
		}
		for _, sc := range scores {
			if err := batch.Append(run.RunID, sc.WalletID, uint16(sc.Score)); err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("send batch: %w", err)
		}
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO scoring_runs (run_id, scored_at, wallet_count, population_hash)
		VALUES (?, ?, ?, ?)
	`, run.RunID, run.ScoredAt.UTC(), uint32(run.WalletCount), run.PopulationHash)
	if err != nil {
		return fmt.Errorf("insert scoring run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *ScoreStore) GetRun(ctx context.Context, runID string) (*domain.ScoringRun, error) {
	return s.queryRun(ctx, `
		SELECT run_id, scored_at, wallet_count, population_hash
		FROM scoring_runs FINAL
		WHERE run_id = ?
		LIMIT 1
	`, runID)
}

// LatestRun retrieves the most recently scored run.
func (s *ScoreStore) LatestRun(ctx context.Context) (*domain.ScoringRun, error) {
	return s.queryRun(ctx, `
		SELECT run_id, scored_at, wallet_count, population_hash
		FROM scoring_runs FINAL
		ORDER BY scored_at DESC, run_id DESC
		LIMIT 1
	`)
}

// GetByRun retrieves the scores of a run ordered by wallet.
func (s *ScoreStore) GetByRun(ctx context.Context, runID string) ([]*domain.ScoreRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT wallet, score
		FROM wallet_scores FINAL
		WHERE run_id = ?
		ORDER BY wallet ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scores by run: %w", err)
	}
	defer rows.Close()

	var records []*domain.ScoreRecord
	for rows.Next() {
		var (
			wallet string
			score  uint16
		)
		if err := rows.Scan(&wallet, &score); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		records = append(records, &domain.ScoreRecord{WalletID: wallet, Score: int(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}
	return records, nil
}

// GetScore retrieves one wallet's score in a run.
func (s *ScoreStore) GetScore(ctx context.Context, runID, wallet string) (*domain.ScoreRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT score
		FROM wallet_scores FINAL
		WHERE run_id = ? AND wallet = ?
		LIMIT 1
	`, runID, wallet)
	if err != nil {
		return nil, fmt.Errorf("query wallet score: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate score rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}
	var score uint16
	if err := rows.Scan(&score); err != nil {
		return nil, fmt.Errorf("scan score row: %w", err)
	}
	return &domain.ScoreRecord{WalletID: wallet, Score: int(score)}, nil
}

func (s *ScoreStore) queryRun(ctx context.Context, query string, args ...any) (*domain.ScoringRun, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scoring run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate run rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var (
		run         domain.ScoringRun
		walletCount uint32
	)
	if err := rows.Scan(&run.RunID, &run.ScoredAt, &walletCount, &run.PopulationHash); err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	run.WalletCount = int(walletCount)
	run.ScoredAt = run.ScoredAt.UTC()
	return &run, nil
}

func (s *ScoreStore) runExists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM scoring_runs FINAL WHERE run_id = ?`, runID,
	).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
