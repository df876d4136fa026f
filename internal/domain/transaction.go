package domain

import "time"

// ActionUnknown is the action of a transaction whose decoded name is not known.
const ActionUnknown = "unknown"

// TransactionRecord is one wallet interaction with a target contract.
// Corresponds to the raw/decoded transactions tables.
type TransactionRecord struct {
	Wallet        string    // wallet whose history produced the row
	TxHash        string    // transaction hash
	Timestamp     time.Time // block signed time (UTC)
	From          string    // sender address
	To            string    // target contract address
	ContractLabel string    // provider label or protocol name
	Action        string    // decoded name or ActionUnknown
	Value         string    // native value as decimal string (wei)
}

// HasKnownAction reports whether the action was decoded.
func (r *TransactionRecord) HasKnownAction() bool {
	return r.Action != "" && r.Action != ActionUnknown
}

// WithAction returns a copy of the record carrying the given action.
func (r *TransactionRecord) WithAction(action string) *TransactionRecord {
	c := *r
	c.Action = action
	return &c
}
