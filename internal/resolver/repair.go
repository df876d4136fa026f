package resolver

import (
	"context"

	"go.uber.org/zap"

	"wallet-score-lab/internal/domain"
)

// RepairResult is the outcome of a repair pass.
type RepairResult struct {
	Records    []*domain.TransactionRecord // new slice, same order as input
	Attempted  int                         // rows that carried "unknown"
	Updated    int                         // rows that flipped to a decoded action
	Unresolved int                         // rows whose log had no decoded name
	Failed     int                         // rows whose lookup failed at the provider
	Partial    bool                        // pass stopped early on cancellation
}

// Repair re-resolves rows whose action is unknown and returns a new record
// slice. Rows with a known action are copied as is and never downgraded.
// When ctx is cancelled the remaining rows are copied unchanged.
func (r *Resolver) Repair(ctx context.Context, records []*domain.TransactionRecord) *RepairResult {
	result := &RepairResult{Records: make([]*domain.TransactionRecord, 0, len(records))}
	seen := make(map[string]Resolution)

	for _, rec := range records {
		if rec.HasKnownAction() || result.Partial {
			result.Records = append(result.Records, rec.WithAction(rec.Action))
			continue
		}
		if ctx.Err() != nil {
			result.Partial = true
			result.Records = append(result.Records, rec.WithAction(rec.Action))
			continue
		}

		result.Attempted++
		res, ok := seen[rec.TxHash]
		if !ok {
			res = r.Resolve(ctx, rec.TxHash)
			seen[rec.TxHash] = res
		}

		switch res.Status {
		case StatusDecoded:
			result.Updated++
			result.Records = append(result.Records, rec.WithAction(res.Action))
			continue
		case StatusProviderError:
			result.Failed++
			if ctx.Err() != nil {
				result.Partial = true
			}
		default:
			result.Unresolved++
		}
		result.Records = append(result.Records, rec.WithAction(rec.Action))
	}

	r.logger.Info("repair pass finished",
		zap.Int("rows", len(records)),
		zap.Int("attempted", result.Attempted),
		zap.Int("updated", result.Updated),
		zap.Int("unresolved", result.Unresolved),
		zap.Int("failed", result.Failed),
		zap.Bool("partial", result.Partial),
	)
	return result
}
