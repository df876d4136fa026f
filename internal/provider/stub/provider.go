// Package stub provides an in-memory data provider for tests and offline runs.
package stub

import (
	"context"
	"errors"
	"sync"

	"wallet-score-lab/internal/provider"
)

// ErrNotFound is returned when a transaction detail is not found.
var ErrNotFound = errors.New("not found")

// Provider implements provider.Provider from in-memory maps.
type Provider struct {
	mu sync.Mutex

	Transactions map[string][]provider.Transaction      // keyed by wallet
	Details      map[string]*provider.TransactionDetail // keyed by tx hash
	WalletErrors map[string]error                       // forced GetTransactions errors
	DetailErrors map[string]error                       // forced GetTransactionDetail errors

	detailCalls map[string]int
}

// NewProvider creates a new stub provider.
func NewProvider() *Provider {
	return &Provider{
		Transactions: make(map[string][]provider.Transaction),
		Details:      make(map[string]*provider.TransactionDetail),
		WalletErrors: make(map[string]error),
		DetailErrors: make(map[string]error),
		detailCalls:  make(map[string]int),
	}
}

var _ provider.Provider = (*Provider)(nil)

// GetTransactions returns the stored transactions of a wallet.
func (p *Provider) GetTransactions(ctx context.Context, wallet string) ([]provider.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.WalletErrors[wallet]; ok {
		return nil, err
	}
	txs := p.Transactions[wallet]
	out := make([]provider.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}

// GetTransactionDetail returns the stored detail of a transaction.
func (p *Provider) GetTransactionDetail(ctx context.Context, txHash string) (*provider.TransactionDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.detailCalls[txHash]++
	if err, ok := p.DetailErrors[txHash]; ok {
		return nil, err
	}
	d, ok := p.Details[txHash]
	if !ok {
		return nil, ErrNotFound
	}
	c := *d
	return &c, nil
}

// DetailCalls returns how many times a transaction detail was requested.
func (p *Provider) DetailCalls(txHash string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detailCalls[txHash]
}

// TotalDetailCalls returns the number of detail requests across all hashes.
func (p *Provider) TotalDetailCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.detailCalls {
		n += c
	}
	return n
}
