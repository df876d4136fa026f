package tabular

import (
	"io"

	"wallet-score-lab/internal/domain"
)

// ReadTransactions reads a raw or decoded transactions table.
// An empty action cell is read as unknown.
func ReadTransactions(r io.Reader) ([]*domain.TransactionRecord, error) {
	var out []*domain.TransactionRecord
	err := forEachRow(r, TransactionColumns, func(h header, row []string, line int) error {
		ts, err := ParseTime(h.get(row, "timestamp"))
		if err != nil {
			return &RowError{Line: line, Err: err}
		}
		action := h.get(row, "action")
		if action == "" {
			action = domain.ActionUnknown
		}
		out = append(out, &domain.TransactionRecord{
			Wallet:        h.get(row, "wallet"),
			TxHash:        h.get(row, "tx_hash"),
			Timestamp:     ts,
			From:          h.get(row, "from"),
			To:            h.get(row, "to"),
			ContractLabel: h.get(row, "contract_label"),
			Action:        action,
			Value:         h.get(row, "value"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteTransactions writes a transactions table.
func WriteTransactions(w io.Writer, records []*domain.TransactionRecord) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.Wallet,
			r.TxHash,
			FormatTime(r.Timestamp),
			r.From,
			r.To,
			r.ContractLabel,
			r.Action,
			r.Value,
		}
	}
	return writeTable(w, TransactionColumns, rows)
}

// ReadTransactionsFile reads a transactions table from path.
func ReadTransactionsFile(path string) ([]*domain.TransactionRecord, error) {
	var out []*domain.TransactionRecord
	err := readFile(path, func(r io.Reader) error {
		var err error
		out, err = ReadTransactions(r)
		return err
	})
	return out, err
}

// WriteTransactionsFile writes a transactions table to path.
func WriteTransactionsFile(path string, records []*domain.TransactionRecord) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteTransactions(w, records)
	})
}
