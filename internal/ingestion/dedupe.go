package ingestion

import (
	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/idhash"
)

// DedupeRecords drops repeated (wallet, tx_hash) rows, keeping the first
// occurrence and the input order. Pages fetched while new transactions land
// can overlap by a few rows. It returns the kept rows and the number dropped.
func DedupeRecords(records []*domain.TransactionRecord) ([]*domain.TransactionRecord, int) {
	seen := make(map[string]struct{}, len(records))
	out := records[:0:0]
	for _, r := range records {
		id := idhash.ComputeRecordID(r.Wallet, r.TxHash)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}
