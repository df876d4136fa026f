// Package features aggregates filtered transactions into per-wallet feature vectors.
package features

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"wallet-score-lab/internal/domain"
)

// ErrNegativeValue is returned for transaction values below zero.
var ErrNegativeValue = errors.New("negative transaction value")

// ValueParseError reports a transaction value that cannot be used in a sum.
type ValueParseError struct {
	Wallet string
	TxHash string
	Value  string
	Err    error
}

func (e *ValueParseError) Error() string {
	return fmt.Sprintf("wallet %s: tx %s: invalid value %q: %v", e.Wallet, e.TxHash, e.Value, e.Err)
}

func (e *ValueParseError) Unwrap() error {
	return e.Err
}

// Result holds aggregated features and the wallets that failed aggregation.
type Result struct {
	Features map[string]*domain.WalletFeatureVector
	Failures []error // one per failed wallet, ordered by wallet
}

// Sorted returns the feature vectors ordered by wallet.
func (r *Result) Sorted() []*domain.WalletFeatureVector {
	out := make([]*domain.WalletFeatureVector, 0, len(r.Features))
	for _, v := range r.Features {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Wallet < out[j].Wallet
	})
	return out
}

// Aggregate groups rows by wallet and computes one feature vector per wallet.
// A wallet with an unparsable value is left out of Features and reported in
// Failures; other wallets are unaffected.
func Aggregate(rows []*domain.TransactionRecord) *Result {
	groups := make(map[string][]*domain.TransactionRecord)
	for _, r := range rows {
		groups[r.Wallet] = append(groups[r.Wallet], r)
	}

	wallets := make([]string, 0, len(groups))
	for w := range groups {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)

	result := &Result{Features: make(map[string]*domain.WalletFeatureVector, len(groups))}
	for _, w := range wallets {
		v, err := AggregateWallet(w, groups[w])
		if err != nil {
			result.Failures = append(result.Failures, err)
			continue
		}
		if v != nil {
			result.Features[w] = v
		}
	}
	return result
}

// AggregateWallet computes the feature vector of a single wallet.
// It returns nil, nil for an empty row set.
func AggregateWallet(wallet string, rows []*domain.TransactionRecord) (*domain.WalletFeatureVector, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	total := decimal.Zero
	first := rows[0].Timestamp
	last := rows[0].Timestamp

	for _, r := range rows {
		v, err := ParseValue(r.Value)
		if err != nil {
			return nil, &ValueParseError{Wallet: wallet, TxHash: r.TxHash, Value: r.Value, Err: err}
		}
		total = total.Add(v)

		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}

	return domain.NewWalletFeatureVector(wallet, int64(len(rows)), total, first, last), nil
}

// ParseValue parses a non-negative decimal transaction value.
func ParseValue(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if v.IsNegative() {
		return decimal.Zero, ErrNegativeValue
	}
	return v, nil
}
