package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/idhash"
	"wallet-score-lab/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransactionRecord // keyed by record ID
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.TransactionRecord),
	}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

func validRecord(r *domain.TransactionRecord) bool {
	return r != nil && r.Wallet != "" && r.TxHash != ""
}

// Insert adds a new row. Returns ErrDuplicateKey if (wallet, tx_hash) exists.
func (s *TransactionStore) Insert(_ context.Context, r *domain.TransactionRecord) error {
	if !validRecord(r) {
		return storage.ErrInvalidInput
	}

	key := idhash.ComputeRecordID(r.Wallet, r.TxHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	recCopy := *r
	s.data[key] = &recCopy
	return nil
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(_ context.Context, records []*domain.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, len(records))
	batchKeys := make(map[string]struct{}, len(records))

	for i, r := range records {
		if !validRecord(r) {
			return storage.ErrInvalidInput
		}
		key := idhash.ComputeRecordID(r.Wallet, r.TxHash)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
		keys[i] = key
	}

	for i, r := range records {
		recCopy := *r
		s.data[keys[i]] = &recCopy
	}

	return nil
}

// UpdateAction sets the action of a row whose action is unknown.
func (s *TransactionStore) UpdateAction(_ context.Context, wallet, txHash, action string) error {
	key := idhash.ComputeRecordID(wallet, txHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[key]
	if !ok {
		return storage.ErrNotFound
	}
	if r.HasKnownAction() {
		return nil
	}
	s.data[key] = r.WithAction(action)
	return nil
}

// GetByWallet retrieves the rows of a wallet, ordered by timestamp ASC, tx_hash ASC.
func (s *TransactionStore) GetByWallet(_ context.Context, wallet string) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, r := range s.data {
		if r.Wallet == wallet {
			recCopy := *r
			result = append(result, &recCopy)
		}
	}
	sortRecords(result)
	return result, nil
}

// GetAll retrieves all rows, ordered by wallet, timestamp, tx_hash.
func (s *TransactionStore) GetAll(_ context.Context) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TransactionRecord, 0, len(s.data))
	for _, r := range s.data {
		recCopy := *r
		result = append(result, &recCopy)
	}
	sortRecords(result)
	return result, nil
}

func sortRecords(records []*domain.TransactionRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Wallet != b.Wallet {
			return a.Wallet < b.Wallet
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.TxHash < b.TxHash
	})
}
