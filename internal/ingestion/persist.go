package ingestion

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

// DefaultBatchSize is the number of rows written per InsertBulk call.
const DefaultBatchSize = 1000

// PersistResult counts the outcome of writing rows to a TransactionStore.
type PersistResult struct {
	Stored     int
	Duplicates int
	Errors     int
}

// Persist writes records in batches. A batch rejected for a duplicate key is
// retried row by row so rows already stored by an earlier run are skipped
// while new ones still land.
func Persist(ctx context.Context, store storage.TransactionStore, records []*domain.TransactionRecord, batchSize int, logger *zap.Logger) PersistResult {
	var res PersistResult
	if store == nil {
		return res
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		err := store.InsertBulk(ctx, batch)
		switch {
		case err == nil:
			res.Stored += len(batch)
		case errors.Is(err, storage.ErrDuplicateKey):
			for _, r := range batch {
				if err := store.Insert(ctx, r); err != nil {
					if errors.Is(err, storage.ErrDuplicateKey) {
						res.Duplicates++
					} else {
						res.Errors++
					}
				} else {
					res.Stored++
				}
			}
		default:
			res.Errors += len(batch)
			logger.Warn("storing transaction batch failed", zap.Int("rows", len(batch)), zap.Error(err))
		}
	}
	return res
}
