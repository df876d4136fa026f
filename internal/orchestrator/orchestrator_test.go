package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/provider"
	"wallet-score-lab/internal/provider/stub"
	"wallet-score-lab/internal/resolver"
	"wallet-score-lab/internal/storage"
	"wallet-score-lab/internal/storage/memory"
	"wallet-score-lab/internal/tabular"
)

const (
	walletA = "0x00000000000000000000000000000000000000aa"
	walletB = "0x00000000000000000000000000000000000000bb"
	walletC = "0x00000000000000000000000000000000000000cc"

	cDAI      = "0x5d3a536e4d6dbd6114cc1ead35777bab948e3643"
	cometUSDC = "0xc3d688b66703497daa19211eedff47f25384cdc3"
	other     = "0x000000000000000000000000000000000000dead"
)

var t0 = time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func tx(hash, to, value, decoded string, at time.Time) provider.Transaction {
	t := provider.Transaction{
		TxHash:        hash,
		BlockSignedAt: at,
		FromAddress:   "0xfrom",
		ToAddress:     strPtr(to),
		Value:         provider.Amount(value),
	}
	if decoded != "" {
		t.Decoded = &provider.Decoded{Name: decoded}
	}
	return t
}

type fixture struct {
	dir      string
	paths    Paths
	provider *stub.Provider
	txStore  *memory.TransactionStore
	features *memory.FeatureStore
	scores   *memory.ScoreStore
}

func newFixture(t *testing.T, walletRows string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir: dir,
		paths: Paths{
			Wallets:   filepath.Join(dir, "wallets.csv"),
			Raw:       filepath.Join(dir, "raw_transactions.csv"),
			Decoded:   filepath.Join(dir, "raw_transactions_decoded.csv"),
			Processed: filepath.Join(dir, "processed_data.csv"),
			Scores:    filepath.Join(dir, "scored_wallets.csv"),
		},
		provider: stub.NewProvider(),
		txStore:  memory.NewTransactionStore(),
		features: memory.NewFeatureStore(),
		scores:   memory.NewScoreStore(),
	}
	require.NoError(t, os.WriteFile(f.paths.Wallets, []byte(walletRows), 0o644))
	return f
}

func (f *fixture) orchestrator() *Orchestrator {
	return New(Options{
		Source:           f.provider,
		Resolver:         resolver.New(f.provider, resolver.Options{MinInterval: -1}),
		Workers:          2,
		Paths:            f.paths,
		TransactionStore: f.txStore,
		FeatureStore:     f.features,
		ScoreStore:       f.scores,
		Now:              func() time.Time { return t0.Add(24 * time.Hour) },
		NewRunID:         func() string { return "run-1" },
	})
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "wallet\n"+walletA+"\nnot-a-wallet\n"+walletB+"\n"+walletC+"\n")

	f.provider.Transactions[walletA] = []provider.Transaction{
		tx("0xa1", cDAI, "100", "mint", t0),
		tx("0xa2", cometUSDC, "300", "", t0.Add(50*time.Hour)),
		tx("0xa3", other, "999", "transfer", t0),
	}
	f.provider.Transactions[walletB] = []provider.Transaction{
		tx("0xb1", cDAI, "100", "redeem", t0),
	}
	f.provider.WalletErrors[walletC] = errors.New("upstream 500")
	f.provider.Details["0xa2"] = &provider.TransactionDetail{
		TxHash:    "0xa2",
		LogEvents: []provider.LogEvent{{Decoded: &provider.Decoded{Name: "Supply"}}},
	}

	res, err := f.orchestrator().Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Fetch.Wallets)
	assert.Equal(t, 1, res.Fetch.InvalidRows)
	assert.Equal(t, 1, res.Fetch.WalletsFailed)
	assert.Equal(t, 3, res.Fetch.Transactions)
	assert.Equal(t, 3, res.Fetch.Stored)
	assert.Len(t, res.Errors, 2)

	assert.Equal(t, 1, res.Decode.Attempted)
	assert.Equal(t, 1, res.Decode.Updated)

	assert.Equal(t, f.paths.Decoded, res.Process.Input)
	assert.Equal(t, 2, res.Process.Wallets)

	require.Len(t, res.Score.Scores, 2)
	assert.Equal(t, &domain.ScoreRecord{WalletID: walletA, Score: 1000}, res.Score.Scores[0])
	assert.Equal(t, &domain.ScoreRecord{WalletID: walletB, Score: 0}, res.Score.Scores[1])
	assert.Equal(t, "run-1", res.Score.Run.RunID)
	assert.Equal(t, 2, res.Score.Run.WalletCount)

	// tables
	raw, err := tabular.ReadTransactionsFile(f.paths.Raw)
	require.NoError(t, err)
	require.Len(t, raw, 3)
	assert.Equal(t, domain.ActionUnknown, raw[1].Action)

	decoded, err := tabular.ReadTransactionsFile(f.paths.Decoded)
	require.NoError(t, err)
	assert.Equal(t, "Supply", decoded[1].Action)

	vectors, err := tabular.ReadFeaturesFile(f.paths.Processed)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, int64(2), vectors[0].TxCount)
	assert.Equal(t, "400", vectors[0].TotalValue.String())
	assert.Equal(t, int64(3), vectors[0].ActiveDays)
	assert.Equal(t, int64(2), vectors[0].WalletAgeDays)

	scores, err := tabular.ReadScoresFile(f.paths.Scores)
	require.NoError(t, err)
	assert.Equal(t, res.Score.Scores, scores)

	// stores
	rows, err := f.txStore.GetByWallet(ctx, walletA)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Supply", rows[1].Action)

	latest, err := f.scores.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.RunID)
	assert.NotEmpty(t, latest.PopulationHash)

	stored, err := f.features.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestOrchestrator_Run_NoTransactions(t *testing.T) {
	f := newFixture(t, "wallet\n"+walletA+"\n")
	f.provider.Transactions[walletA] = []provider.Transaction{tx("0xa1", other, "1", "", t0)}

	res, err := f.orchestrator().Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Fetch.Transactions)
	assert.Zero(t, res.Process.Wallets)
	assert.Empty(t, res.Score.Scores)
	assert.Equal(t, 0, res.Score.Run.WalletCount)

	scores, err := tabular.ReadScoresFile(f.paths.Scores)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestOrchestrator_Process_FallsBackToRaw(t *testing.T) {
	f := newFixture(t, "wallet\n")
	require.NoError(t, tabular.WriteTransactionsFile(f.paths.Raw, []*domain.TransactionRecord{
		{Wallet: walletA, TxHash: "0x1", Timestamp: t0, To: cDAI, Action: "mint", Value: "5"},
		{Wallet: walletA, TxHash: "0x2", Timestamp: t0, To: other, Action: "mint", Value: "5"},
	}))

	res, err := f.orchestrator().Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.paths.Raw, res.Input)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.Kept)
	assert.Equal(t, 1, res.Wallets)
	assert.ElementsMatch(t, []string{"tx_count", "total_value", "active_days", "wallet_age_days"}, res.Degenerate)
}

func TestOrchestrator_Process_BadValueExcludesWallet(t *testing.T) {
	f := newFixture(t, "wallet\n")
	require.NoError(t, tabular.WriteTransactionsFile(f.paths.Decoded, []*domain.TransactionRecord{
		{Wallet: walletA, TxHash: "0x1", Timestamp: t0, To: cDAI, Action: "mint", Value: "abc"},
		{Wallet: walletB, TxHash: "0x2", Timestamp: t0, To: cDAI, Action: "mint", Value: "5"},
	}))

	res, err := f.orchestrator().Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Wallets)
	assert.Equal(t, 1, res.WalletsFailed)

	vectors, err := tabular.ReadFeaturesFile(f.paths.Processed)
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, walletB, vectors[0].Wallet)
}

func TestOrchestrator_Decode_WithoutResolverCopiesRows(t *testing.T) {
	f := newFixture(t, "wallet\n")
	rows := []*domain.TransactionRecord{
		{Wallet: walletA, TxHash: "0x1", Timestamp: t0, To: cDAI, Action: domain.ActionUnknown, Value: "5"},
	}
	require.NoError(t, tabular.WriteTransactionsFile(f.paths.Raw, rows))

	o := New(Options{Paths: f.paths})
	res, err := o.Decode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Zero(t, res.Updated)

	decoded, err := tabular.ReadTransactionsFile(f.paths.Decoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, domain.ActionUnknown, decoded[0].Action)
}

func TestOrchestrator_Fetch_RequiresSource(t *testing.T) {
	f := newFixture(t, "wallet\n")
	_, err := New(Options{Paths: f.paths}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestOrchestrator_Score_MissingProcessedTable(t *testing.T) {
	f := newFixture(t, "wallet\n")
	res, err := f.orchestrator().Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Score.Scores)

	_, err = New(Options{Paths: Paths{Processed: filepath.Join(f.dir, "missing.csv")}}).Score(context.Background())
	assert.Error(t, err)
}

func TestOrchestrator_Refetch_DropsStaleDecodedTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "wallet\n"+walletA+"\n")
	f.provider.Transactions[walletA] = []provider.Transaction{tx("0xa1", cDAI, "100", "mint", t0)}
	f.provider.Transactions[walletB] = []provider.Transaction{tx("0xb1", cDAI, "7", "mint", t0)}

	o := f.orchestrator()
	_, err := o.Run(ctx)
	require.NoError(t, err)
	require.FileExists(t, f.paths.Decoded)

	// new wallet list, fetched but not decoded
	require.NoError(t, os.WriteFile(f.paths.Wallets, []byte("wallet\n"+walletB+"\n"), 0o644))
	_, err = o.Fetch(ctx)
	require.NoError(t, err)
	assert.NoFileExists(t, f.paths.Decoded)

	res, err := o.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.paths.Raw, res.Input)

	vectors, err := tabular.ReadFeaturesFile(f.paths.Processed)
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, walletB, vectors[0].Wallet)
}

func TestOrchestrator_Process_IgnoresDecodedOlderThanRaw(t *testing.T) {
	f := newFixture(t, "wallet\n")
	require.NoError(t, tabular.WriteTransactionsFile(f.paths.Decoded, []*domain.TransactionRecord{
		{Wallet: walletA, TxHash: "0x1", Timestamp: t0, To: cDAI, Action: "mint", Value: "5"},
	}))
	require.NoError(t, tabular.WriteTransactionsFile(f.paths.Raw, []*domain.TransactionRecord{
		{Wallet: walletB, TxHash: "0x2", Timestamp: t0, To: cDAI, Action: "mint", Value: "5"},
	}))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(f.paths.Decoded, old, old))

	res, err := f.orchestrator().Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.paths.Raw, res.Input)

	vectors, err := tabular.ReadFeaturesFile(f.paths.Processed)
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, walletB, vectors[0].Wallet)
}

func TestOrchestrator_Score_RejectsDuplicateWallets(t *testing.T) {
	f := newFixture(t, "wallet\n")
	rows := "wallet,tx_count,total_value,first_tx,last_tx,active_days\n" +
		walletA + ",1,100,2023-03-01T12:00:00Z,2023-03-01T12:00:00Z,1\n" +
		walletA + ",2,300,2023-03-01T12:00:00Z,2023-03-03T14:00:00Z,3\n"
	require.NoError(t, os.WriteFile(f.paths.Processed, []byte(rows), 0o644))

	_, err := f.orchestrator().Score(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, tabular.ErrDuplicateWallet)
	assert.NoFileExists(t, f.paths.Scores)

	_, err = f.scores.LatestRun(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
