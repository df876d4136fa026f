package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.WalletFeatureVector // run_id -> wallet -> vector
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[string]map[string]*domain.WalletFeatureVector),
	}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// InsertBulk stores the vectors of a run atomically.
func (s *FeatureStore) InsertBulk(_ context.Context, runID string, vectors []*domain.WalletFeatureVector) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(vectors) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]
	batch := make(map[string]struct{}, len(vectors))
	for _, v := range vectors {
		if v == nil || v.Wallet == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := existing[v.Wallet]; ok {
			return storage.ErrDuplicateKey
		}
		if _, ok := batch[v.Wallet]; ok {
			return storage.ErrDuplicateKey
		}
		batch[v.Wallet] = struct{}{}
	}

	if existing == nil {
		existing = make(map[string]*domain.WalletFeatureVector, len(vectors))
		s.data[runID] = existing
	}
	for _, v := range vectors {
		vecCopy := *v
		existing[v.Wallet] = &vecCopy
	}
	return nil
}

// GetByRun retrieves the vectors of a run ordered by wallet.
func (s *FeatureStore) GetByRun(_ context.Context, runID string) ([]*domain.WalletFeatureVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run := s.data[runID]
	result := make([]*domain.WalletFeatureVector, 0, len(run))
	for _, v := range run {
		vecCopy := *v
		result = append(result, &vecCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Wallet < result[j].Wallet
	})
	return result, nil
}

// GetByWallet retrieves one wallet's vector in a run.
func (s *FeatureStore) GetByWallet(_ context.Context, runID, wallet string) (*domain.WalletFeatureVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[runID][wallet]
	if !ok {
		return nil, storage.ErrNotFound
	}
	vecCopy := *v
	return &vecCopy, nil
}
