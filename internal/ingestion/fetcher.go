// Package ingestion pulls wallet transaction histories from the data provider
// and narrows them to the target lending contracts.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/filter"
	"wallet-score-lab/internal/observability"
	"wallet-score-lab/internal/provider"
)

// WalletFailure records a wallet whose history could not be fetched.
type WalletFailure struct {
	Wallet string
	Err    error
}

func (f WalletFailure) Error() string {
	return fmt.Sprintf("wallet %s: %v", f.Wallet, f.Err)
}

// FetchResult contains the rows and statistics of a fetch pass.
type FetchResult struct {
	Records        []*domain.TransactionRecord // in input wallet order
	Failures       []WalletFailure
	WalletsFetched int
	WalletsSkipped int  // not attempted because ctx was cancelled
	Partial        bool // pass stopped early on cancellation
	Duration       time.Duration
}

// FetcherOptions contains configuration for creating a Fetcher.
type FetcherOptions struct {
	Source  provider.TransactionSource
	Targets *domain.ContractSet
	Workers int // concurrent wallets, default 1
	Logger  *zap.Logger
}

// Fetcher fetches and filters the transactions of a wallet list.
type Fetcher struct {
	source  provider.TransactionSource
	targets *domain.ContractSet
	workers int
	logger  *zap.Logger
}

// NewFetcher creates a new Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		source:  opts.Source,
		targets: opts.Targets,
		workers: workers,
		logger:  logger,
	}
}

type walletOutcome struct {
	attempted bool
	records   []*domain.TransactionRecord
	err       error
}

// Fetch fetches every wallet. A wallet whose fetch fails contributes no rows
// and is reported in Failures; it never aborts the pass. Cancellation stops
// scheduling further wallets; rows of wallets already fetched are kept.
func (f *Fetcher) Fetch(ctx context.Context, wallets []string) *FetchResult {
	start := time.Now()
	outcomes := make([]walletOutcome, len(wallets))

	var g errgroup.Group
	g.SetLimit(f.workers)

	for i, wallet := range wallets {
		if ctx.Err() != nil {
			break
		}
		i, wallet := i, wallet
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			records, err := f.FetchWallet(ctx, wallet)
			outcomes[i] = walletOutcome{attempted: true, records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &FetchResult{}
	for i, o := range outcomes {
		switch {
		case !o.attempted:
			result.WalletsSkipped++
		case o.err != nil:
			result.Failures = append(result.Failures, WalletFailure{Wallet: wallets[i], Err: o.err})
		default:
			result.WalletsFetched++
			result.Records = append(result.Records, o.records...)
		}
	}
	result.Partial = result.WalletsSkipped > 0
	result.Duration = time.Since(start)

	f.logger.Info("fetch pass finished",
		zap.Int("wallets", len(wallets)),
		zap.Int("fetched", result.WalletsFetched),
		zap.Int("failed", len(result.Failures)),
		zap.Int("skipped", result.WalletsSkipped),
		zap.Int("rows", len(result.Records)),
		zap.Duration("duration", result.Duration),
	)
	return result
}

// FetchWallet fetches and filters the transactions of one wallet.
func (f *Fetcher) FetchWallet(ctx context.Context, wallet string) ([]*domain.TransactionRecord, error) {
	txs, err := f.source.GetTransactions(ctx, wallet)
	if err != nil {
		observability.RecordWalletFetched(0, 0, err)
		f.logger.Warn("wallet fetch failed", zap.String("wallet", wallet), zap.Error(err))
		return nil, err
	}

	records, dropped := DedupeRecords(filter.FilterTransactions(wallet, txs, f.targets))
	observability.RecordWalletFetched(len(txs), len(records), nil)
	f.logger.Debug("wallet fetched",
		zap.String("wallet", wallet),
		zap.Int("transactions", len(txs)),
		zap.Int("kept", len(records)),
		zap.Int("duplicates", dropped),
	)
	return records, nil
}
