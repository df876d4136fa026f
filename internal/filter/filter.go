// Package filter restricts wallet transactions to target contracts.
package filter

import (
	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/provider"
)

// FilterTransactions keeps transactions whose destination is a target
// contract (ignoring letter case) and turns them into records of wallet.
// Input order is preserved. Actions are taken from the transaction's own
// decoded call; rows without one carry domain.ActionUnknown and are left for
// the resolver's repair pass.
func FilterTransactions(wallet string, txs []provider.Transaction, targets *domain.ContractSet) []*domain.TransactionRecord {
	var out []*domain.TransactionRecord
	for i := range txs {
		tx := &txs[i]
		to := tx.To()
		contract, ok := targets.Lookup(to)
		if !ok {
			continue
		}

		action := tx.DecodedName()
		if action == "" {
			action = domain.ActionUnknown
		}
		label := tx.Label()
		if label == "" {
			label = contract.Protocol
		}

		out = append(out, &domain.TransactionRecord{
			Wallet:        wallet,
			TxHash:        tx.TxHash,
			Timestamp:     tx.BlockSignedAt.UTC(),
			From:          tx.FromAddress,
			To:            to,
			ContractLabel: label,
			Action:        action,
			Value:         tx.Value.String(),
		})
	}
	return out
}

// FilterRecords applies the target-contract predicate to existing records.
// It is idempotent: FilterRecords(FilterRecords(r, t), t) == FilterRecords(r, t).
func FilterRecords(records []*domain.TransactionRecord, targets *domain.ContractSet) []*domain.TransactionRecord {
	var out []*domain.TransactionRecord
	for _, r := range records {
		if r.To != "" && targets.Contains(r.To) {
			out = append(out, r)
		}
	}
	return out
}
