package tabular

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"wallet-score-lab/internal/domain"
)

var (
	// ErrInvalidFeature is returned for a features row that no aggregation could produce.
	ErrInvalidFeature = errors.New("invalid feature row")
	// ErrDuplicateWallet is returned when a features table lists a wallet twice.
	ErrDuplicateWallet = errors.New("duplicate wallet")
)

// ReadFeatures reads a processed features table. wallet_age_days is not
// stored and is recomputed from first_tx and last_tx.
func ReadFeatures(r io.Reader) ([]*domain.WalletFeatureVector, error) {
	var out []*domain.WalletFeatureVector
	seen := make(map[string]int)
	err := forEachRow(r, FeatureColumns, func(h header, row []string, line int) error {
		v, err := parseFeatureRow(h, row)
		if err != nil {
			return &RowError{Line: line, Err: err}
		}
		if prev, ok := seen[v.Wallet]; ok {
			return &RowError{Line: line, Err: fmt.Errorf("%w: %s also on line %d", ErrDuplicateWallet, v.Wallet, prev)}
		}
		seen[v.Wallet] = line
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseFeatureRow(h header, row []string) (*domain.WalletFeatureVector, error) {
	wallet := h.get(row, "wallet")
	if wallet == "" {
		return nil, fmt.Errorf("%w: empty wallet", ErrInvalidFeature)
	}
	txCount, err := strconv.ParseInt(h.get(row, "tx_count"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("tx_count: %w", err)
	}
	total, err := decimal.NewFromString(h.get(row, "total_value"))
	if err != nil {
		return nil, fmt.Errorf("total_value: %w", err)
	}
	first, err := ParseTime(h.get(row, "first_tx"))
	if err != nil {
		return nil, fmt.Errorf("first_tx: %w", err)
	}
	last, err := ParseTime(h.get(row, "last_tx"))
	if err != nil {
		return nil, fmt.Errorf("last_tx: %w", err)
	}
	active, err := strconv.ParseInt(h.get(row, "active_days"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("active_days: %w", err)
	}

	switch {
	case txCount < 1:
		return nil, fmt.Errorf("%w: tx_count %d is below 1", ErrInvalidFeature, txCount)
	case total.IsNegative():
		return nil, fmt.Errorf("%w: total_value %s is negative", ErrInvalidFeature, total)
	case last.Before(first):
		return nil, fmt.Errorf("%w: last_tx precedes first_tx", ErrInvalidFeature)
	}

	v := domain.NewWalletFeatureVector(wallet, txCount, total, first, last)
	if active != v.ActiveDays {
		return nil, fmt.Errorf("%w: active_days %d, first_tx and last_tx give %d", ErrInvalidFeature, active, v.ActiveDays)
	}
	return v, nil
}

// WriteFeatures writes a processed features table.
func WriteFeatures(w io.Writer, vectors []*domain.WalletFeatureVector) error {
	rows := make([][]string, len(vectors))
	for i, v := range vectors {
		rows[i] = []string{
			v.Wallet,
			strconv.FormatInt(v.TxCount, 10),
			v.TotalValue.String(),
			FormatTime(v.FirstTx),
			FormatTime(v.LastTx),
			strconv.FormatInt(v.ActiveDays, 10),
		}
	}
	return writeTable(w, FeatureColumns, rows)
}

// ReadFeaturesFile reads a processed features table from path.
func ReadFeaturesFile(path string) ([]*domain.WalletFeatureVector, error) {
	var out []*domain.WalletFeatureVector
	err := readFile(path, func(r io.Reader) error {
		var err error
		out, err = ReadFeatures(r)
		return err
	})
	return out, err
}

// WriteFeaturesFile writes a processed features table to path.
func WriteFeaturesFile(path string, vectors []*domain.WalletFeatureVector) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteFeatures(w, vectors)
	})
}
