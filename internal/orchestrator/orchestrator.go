// Package orchestrator runs the wallet scoring pipeline end to end:
// fetch, decode, process and score.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/features"
	"wallet-score-lab/internal/filter"
	"wallet-score-lab/internal/idhash"
	"wallet-score-lab/internal/ingestion"
	"wallet-score-lab/internal/observability"
	"wallet-score-lab/internal/provider"
	"wallet-score-lab/internal/resolver"
	"wallet-score-lab/internal/scoring"
	"wallet-score-lab/internal/storage"
	"wallet-score-lab/internal/tabular"
)

// Stage names used in logs and metrics.
const (
	StageFetch   = "fetch"
	StageDecode  = "decode"
	StageProcess = "process"
	StageScore   = "score"
)

// Paths locates the tables exchanged between stages.
type Paths struct {
	Wallets   string
	Raw       string
	Decoded   string
	Processed string
	Scores    string
}

// Orchestrator coordinates the pipeline stages.
type Orchestrator struct {
	source    provider.TransactionSource
	resolver  *resolver.Resolver
	targets   *domain.ContractSet
	workers   int
	batchSize int
	paths     Paths

	txStore      storage.TransactionStore
	featureStore storage.FeatureStore
	scoreStore   storage.ScoreStore

	logger   *zap.Logger
	now      func() time.Time
	newRunID func() string
}

// Options contains configuration for creating an Orchestrator.
// Stores are optional; a nil store skips persistence for its data.
type Options struct {
	Source    provider.TransactionSource
	Resolver  *resolver.Resolver
	Targets   *domain.ContractSet
	Workers   int
	BatchSize int
	Paths     Paths

	TransactionStore storage.TransactionStore
	FeatureStore     storage.FeatureStore
	ScoreStore       storage.ScoreStore

	Logger   *zap.Logger
	Now      func() time.Time // defaults to time.Now
	NewRunID func() string    // defaults to a random UUID
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = func() string { return uuid.NewString() }
	}
	targets := opts.Targets
	if targets == nil {
		targets = domain.NewContractSet(domain.DefaultMarkets()...)
	}
	return &Orchestrator{
		source:       opts.Source,
		resolver:     opts.Resolver,
		targets:      targets,
		workers:      opts.Workers,
		batchSize:    opts.BatchSize,
		paths:        opts.Paths,
		txStore:      opts.TransactionStore,
		featureStore: opts.FeatureStore,
		scoreStore:   opts.ScoreStore,
		logger:       logger.Named("orchestrator"),
		now:          now,
		newRunID:     newRunID,
	}
}

// FetchResult summarizes the fetch stage.
type FetchResult struct {
	Wallets        int
	InvalidRows    int
	WalletsFailed  int
	WalletsSkipped int
	Transactions   int
	Stored         int
	Duplicates     int
	Partial        bool
}

// DecodeResult summarizes the decode stage.
type DecodeResult struct {
	Rows       int
	Attempted  int
	Updated    int
	Unresolved int
	Failed     int
	Partial    bool
}

// ProcessResult summarizes the process stage.
type ProcessResult struct {
	Input         string // table the stage read
	Rows          int
	Kept          int
	Wallets       int
	WalletsFailed int
	Degenerate    []string
}

// ScoreResult summarizes the score stage.
type ScoreResult struct {
	Run    *domain.ScoringRun
	Scores []*domain.ScoreRecord
}

// RunResult contains the summary of a full pipeline run.
type RunResult struct {
	Fetch   *FetchResult
	Decode  *DecodeResult
	Process *ProcessResult
	Score   *ScoreResult
	Errors  []string // non-fatal per-item errors
}

// Run executes all stages in order. A stage error stops the run; per-wallet
// and per-row failures are collected in RunResult.Errors.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}
	start := o.now()

	var err error
	if result.Fetch, err = timed(StageFetch, func() (*FetchResult, error) { return o.fetch(ctx, result) }); err != nil {
		return result, fmt.Errorf("phase 1 (fetch) failed: %w", err)
	}
	if result.Decode, err = timed(StageDecode, func() (*DecodeResult, error) { return o.Decode(ctx) }); err != nil {
		return result, fmt.Errorf("phase 2 (decode) failed: %w", err)
	}
	if result.Process, err = timed(StageProcess, func() (*ProcessResult, error) { return o.process(ctx, result) }); err != nil {
		return result, fmt.Errorf("phase 3 (process) failed: %w", err)
	}
	if result.Score, err = timed(StageScore, func() (*ScoreResult, error) { return o.Score(ctx) }); err != nil {
		return result, fmt.Errorf("phase 4 (score) failed: %w", err)
	}

	observability.MarkRunSucceeded(o.now().Unix())
	o.logger.Info("pipeline finished",
		zap.String("run_id", result.Score.Run.RunID),
		zap.Int("wallets_scored", len(result.Score.Scores)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", o.now().Sub(start)),
	)
	return result, nil
}

func timed[T any](stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordStage(stage, status, time.Since(start).Seconds())
	return out, err
}

// Fetch reads the wallets table, pulls each wallet's history, keeps the rows
// that touch a target contract and writes the raw transactions table.
func (o *Orchestrator) Fetch(ctx context.Context) (*FetchResult, error) {
	return o.fetch(ctx, nil)
}

func (o *Orchestrator) fetch(ctx context.Context, run *RunResult) (*FetchResult, error) {
	if o.source == nil {
		return nil, errors.New("no transaction source configured")
	}
	list, err := tabular.ReadWalletsFile(o.paths.Wallets)
	if err != nil {
		return nil, fmt.Errorf("read wallets: %w", err)
	}
	for _, bad := range list.Invalid {
		o.logger.Warn("skipping invalid wallet row", zap.Error(bad))
		run.addError(bad.Error())
	}

	fetcher := ingestion.NewFetcher(ingestion.FetcherOptions{
		Source:  o.source,
		Targets: o.targets,
		Workers: o.workers,
		Logger:  o.logger,
	})
	fr := fetcher.Fetch(ctx, list.Wallets)
	for _, f := range fr.Failures {
		run.addError(f.Error())
	}

	if err := tabular.WriteTransactionsFile(o.paths.Raw, fr.Records); err != nil {
		return nil, fmt.Errorf("write raw transactions: %w", err)
	}
	// A decoded table from an earlier fetch no longer matches the raw table.
	if err := os.Remove(o.paths.Decoded); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale decoded transactions: %w", err)
	}
	if len(fr.Records) == 0 {
		o.logger.Info("no transactions found", zap.Int("wallets", len(list.Wallets)))
	}

	persisted := ingestion.Persist(ctx, o.txStore, fr.Records, o.batchSize, o.logger)

	res := &FetchResult{
		Wallets:        len(list.Wallets),
		InvalidRows:    len(list.Invalid),
		WalletsFailed:  len(fr.Failures),
		WalletsSkipped: fr.WalletsSkipped,
		Transactions:   len(fr.Records),
		Stored:         persisted.Stored,
		Duplicates:     persisted.Duplicates,
		Partial:        fr.Partial,
	}
	o.logger.Info("fetch stage finished",
		zap.String("output", o.paths.Raw),
		zap.Int("wallets", res.Wallets),
		zap.Int("failed", res.WalletsFailed),
		zap.Int("transactions", res.Transactions),
		zap.Int("stored", res.Stored),
		zap.Bool("partial", res.Partial),
	)
	return res, nil
}

// Decode re-resolves the unknown actions of the raw table and writes the
// decoded table. Without a resolver the raw rows are copied unchanged.
func (o *Orchestrator) Decode(ctx context.Context) (*DecodeResult, error) {
	records, err := tabular.ReadTransactionsFile(o.paths.Raw)
	if err != nil {
		return nil, fmt.Errorf("read raw transactions: %w", err)
	}

	res := &DecodeResult{Rows: len(records)}
	out := records
	if o.resolver != nil {
		repaired := o.resolver.Repair(ctx, records)
		out = repaired.Records
		res.Attempted = repaired.Attempted
		res.Updated = repaired.Updated
		res.Unresolved = repaired.Unresolved
		res.Failed = repaired.Failed
		res.Partial = repaired.Partial
	}

	if err := tabular.WriteTransactionsFile(o.paths.Decoded, out); err != nil {
		return nil, fmt.Errorf("write decoded transactions: %w", err)
	}
	o.updateStoredActions(ctx, records, out)

	o.logger.Info(fmt.Sprintf("updated %d unknown actions", res.Updated),
		zap.String("output", o.paths.Decoded),
		zap.Int("rows", res.Rows),
		zap.Int("attempted", res.Attempted),
		zap.Int("failed", res.Failed),
		zap.Bool("partial", res.Partial),
	)
	return res, nil
}

// updateStoredActions mirrors decoded actions into the transaction store.
func (o *Orchestrator) updateStoredActions(ctx context.Context, before, after []*domain.TransactionRecord) {
	if o.txStore == nil {
		return
	}
	for i, rec := range after {
		if before[i].HasKnownAction() || !rec.HasKnownAction() {
			continue
		}
		err := o.txStore.UpdateAction(ctx, rec.Wallet, rec.TxHash, rec.Action)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			o.logger.Warn("store action update failed",
				zap.String("wallet", rec.Wallet),
				zap.String("tx_hash", rec.TxHash),
				zap.Error(err),
			)
		}
	}
}

// Process aggregates the decoded table (or the raw table when no decoded
// table exists) into per-wallet feature vectors and writes the processed table.
func (o *Orchestrator) Process(ctx context.Context) (*ProcessResult, error) {
	return o.process(ctx, nil)
}

func (o *Orchestrator) process(ctx context.Context, run *RunResult) (*ProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input, err := o.processInput()
	if err != nil {
		return nil, err
	}

	records, err := tabular.ReadTransactionsFile(input)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	kept := filter.FilterRecords(records, o.targets)
	agg := features.Aggregate(kept)

	for _, f := range agg.Failures {
		o.logger.Warn("wallet excluded from features", zap.Error(f))
		run.addError(f.Error())
	}
	observability.RecordFeatureFailures(len(agg.Failures))

	vectors := agg.Sorted()
	if err := tabular.WriteFeaturesFile(o.paths.Processed, vectors); err != nil {
		return nil, fmt.Errorf("write features: %w", err)
	}

	degenerate := scoring.ComputeBounds(vectors).DegenerateFeatures()
	if len(vectors) > 0 && len(degenerate) > 0 {
		o.logger.Warn("features have no spread in this population",
			zap.Strings("features", degenerate),
			zap.Int("wallets", len(vectors)),
		)
	}

	res := &ProcessResult{
		Input:         input,
		Rows:          len(records),
		Kept:          len(kept),
		Wallets:       len(vectors),
		WalletsFailed: len(agg.Failures),
		Degenerate:    degenerate,
	}
	o.logger.Info("process stage finished",
		zap.String("input", input),
		zap.String("output", o.paths.Processed),
		zap.Int("rows", res.Rows),
		zap.Int("kept", res.Kept),
		zap.Int("wallets", res.Wallets),
		zap.Int("failed", res.WalletsFailed),
	)
	return res, nil
}

// processInput picks the decoded table unless it is missing or older than
// the raw table it was derived from.
func (o *Orchestrator) processInput() (string, error) {
	decoded, err := os.Stat(o.paths.Decoded)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return o.paths.Raw, nil
		}
		return "", fmt.Errorf("stat decoded transactions: %w", err)
	}
	raw, err := os.Stat(o.paths.Raw)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return o.paths.Decoded, nil
		}
		return "", fmt.Errorf("stat raw transactions: %w", err)
	}
	if raw.ModTime().After(decoded.ModTime()) {
		o.logger.Warn("decoded table is older than raw table, reading raw",
			zap.String("decoded", o.paths.Decoded),
			zap.String("raw", o.paths.Raw),
		)
		return o.paths.Raw, nil
	}
	return o.paths.Decoded, nil
}

// Score normalizes the processed table into scores, writes the scores table
// and stores the run with its feature vectors.
func (o *Orchestrator) Score(ctx context.Context) (*ScoreResult, error) {
	vectors, err := tabular.ReadFeaturesFile(o.paths.Processed)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}

	scores := scoring.Records(vectors)
	if err := tabular.WriteScoresFile(o.paths.Scores, scores); err != nil {
		return nil, fmt.Errorf("write scores: %w", err)
	}

	wallets := make([]string, len(scores))
	for i, s := range scores {
		wallets[i] = s.WalletID
		observability.RecordScore(s.Score)
	}
	run := &domain.ScoringRun{
		RunID:          o.newRunID(),
		ScoredAt:       o.now().UTC(),
		WalletCount:    len(scores),
		PopulationHash: idhash.ComputePopulationHash(wallets),
	}

	if o.featureStore != nil && len(vectors) > 0 {
		if err := o.featureStore.InsertBulk(ctx, run.RunID, vectors); err != nil {
			return nil, fmt.Errorf("store features of run %s: %w", run.RunID, err)
		}
	}
	if o.scoreStore != nil {
		if err := o.scoreStore.InsertRun(ctx, run, scores); err != nil {
			return nil, fmt.Errorf("store run %s: %w", run.RunID, err)
		}
	}

	o.logger.Info(fmt.Sprintf("scored wallets saved to %s", o.paths.Scores),
		zap.String("run_id", run.RunID),
		zap.Int("wallets", run.WalletCount),
	)
	return &ScoreResult{Run: run, Scores: scores}, nil
}

func (r *RunResult) addError(msg string) {
	if r == nil {
		return
	}
	r.Errors = append(r.Errors, msg)
}
