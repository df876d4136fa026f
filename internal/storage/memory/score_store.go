package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

type scoredRun struct {
	run    domain.ScoringRun
	scores map[string]int
}

// ScoreStore is an in-memory implementation of storage.ScoreStore.
type ScoreStore struct {
	mu   sync.RWMutex
	runs map[string]*scoredRun
}

// NewScoreStore creates a new in-memory score store.
func NewScoreStore() *ScoreStore {
	return &ScoreStore{
		runs: make(map[string]*scoredRun),
	}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// InsertRun stores a run together with its scores atomically.
func (s *ScoreStore) InsertRun(_ context.Context, run *domain.ScoringRun, scores []*domain.ScoreRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	byWallet := make(map[string]int, len(scores))
	for _, sc := range scores {
		if sc == nil || sc.WalletID == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := byWallet[sc.WalletID]; dup {
			return storage.ErrDuplicateKey
		}
		byWallet[sc.WalletID] = sc.Score
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.runs[run.RunID] = &scoredRun{run: *run, scores: byWallet}
	return nil
}

// GetRun retrieves a run by ID.
func (s *ScoreStore) GetRun(_ context.Context, runID string) (*domain.ScoringRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	runCopy := r.run
	return &runCopy, nil
}

// LatestRun retrieves the most recently scored run.
// Ties on scored_at are broken by run_id.
func (s *ScoreStore) LatestRun(_ context.Context) (*domain.ScoringRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.ScoringRun
	for _, r := range s.runs {
		if latest == nil ||
			r.run.ScoredAt.After(latest.ScoredAt) ||
			(r.run.ScoredAt.Equal(latest.ScoredAt) && r.run.RunID > latest.RunID) {
			run := r.run
			latest = &run
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// GetByRun retrieves the scores of a run ordered by wallet.
func (s *ScoreStore) GetByRun(_ context.Context, runID string) ([]*domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	result := make([]*domain.ScoreRecord, 0, len(r.scores))
	for w, sc := range r.scores {
		result = append(result, &domain.ScoreRecord{WalletID: w, Score: sc})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].WalletID < result[j].WalletID
	})
	return result, nil
}

// GetScore retrieves one wallet's score in a run.
func (s *ScoreStore) GetScore(_ context.Context, runID, wallet string) (*domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	sc, ok := r.scores[wallet]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.ScoreRecord{WalletID: wallet, Score: sc}, nil
}
