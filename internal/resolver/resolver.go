// Package resolver determines the action of a transaction from its event log.
package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/observability"
	"wallet-score-lab/internal/provider"
)

// DefaultMinInterval is the minimum delay between provider lookups.
const DefaultMinInterval = 200 * time.Millisecond

// Status tags how a resolution was reached. The surfaced action is
// domain.ActionUnknown for both StatusNoDecodedName and StatusProviderError.
type Status int

const (
	StatusDecoded Status = iota
	StatusNoDecodedName
	StatusProviderError
)

// String returns the metric/log label of the status.
func (s Status) String() string {
	switch s {
	case StatusDecoded:
		return "decoded"
	case StatusNoDecodedName:
		return "no_decoded_name"
	case StatusProviderError:
		return "provider_error"
	default:
		return "unknown_status"
	}
}

// Resolution is the outcome of resolving one transaction.
type Resolution struct {
	Action string
	Status Status
	Err    error // set only for StatusProviderError
	Cached bool
}

// ActionCache remembers decoded actions by transaction hash.
type ActionCache interface {
	Get(ctx context.Context, txHash string) (string, bool, error)
	Set(ctx context.Context, txHash, action string) error
}

// Options configures a Resolver.
type Options struct {
	MinInterval time.Duration // <0 disables pacing, 0 uses DefaultMinInterval
	Cache       ActionCache
	Logger      *zap.Logger
}

// Resolver looks up transaction event logs at a paced rate.
type Resolver struct {
	source  provider.DetailSource
	limiter *rate.Limiter
	cache   ActionCache
	logger  *zap.Logger
}

// New creates a new Resolver.
func New(source provider.DetailSource, opts Options) *Resolver {
	interval := opts.MinInterval
	if interval == 0 {
		interval = DefaultMinInterval
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:  source,
		limiter: rate.NewLimiter(limit, 1),
		cache:   opts.Cache,
		logger:  logger,
	}
}

// ResolveAction returns the decoded action of txHash or domain.ActionUnknown.
// It never fails.
func (r *Resolver) ResolveAction(ctx context.Context, txHash string) string {
	return r.Resolve(ctx, txHash).Action
}

// Resolve returns the action of txHash together with how it was obtained.
func (r *Resolver) Resolve(ctx context.Context, txHash string) Resolution {
	if action, ok := r.cached(ctx, txHash); ok {
		return Resolution{Action: action, Status: StatusDecoded, Cached: true}
	}

	res := r.lookup(ctx, txHash)
	observability.RecordResolution(res.Status.String())

	if res.Status == StatusDecoded && r.cache != nil {
		if err := r.cache.Set(ctx, txHash, res.Action); err != nil {
			r.logger.Warn("action cache write failed", zap.String("tx_hash", txHash), zap.Error(err))
		}
	}
	return res
}

func (r *Resolver) lookup(ctx context.Context, txHash string) Resolution {
	if err := r.limiter.Wait(ctx); err != nil {
		return failed(err)
	}

	detail, err := r.source.GetTransactionDetail(ctx, txHash)
	if err != nil {
		r.logger.Warn("transaction detail lookup failed", zap.String("tx_hash", txHash), zap.Error(err))
		return failed(err)
	}
	if detail == nil {
		return Resolution{Action: domain.ActionUnknown, Status: StatusNoDecodedName}
	}

	for i := range detail.LogEvents {
		if name := detail.LogEvents[i].DecodedName(); name != "" {
			return Resolution{Action: name, Status: StatusDecoded}
		}
	}
	return Resolution{Action: domain.ActionUnknown, Status: StatusNoDecodedName}
}

func (r *Resolver) cached(ctx context.Context, txHash string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	action, ok, err := r.cache.Get(ctx, txHash)
	if err != nil {
		r.logger.Warn("action cache read failed", zap.String("tx_hash", txHash), zap.Error(err))
		return "", false
	}
	hit := ok && action != "" && action != domain.ActionUnknown
	observability.RecordCacheLookup(hit)
	return action, hit
}

func failed(err error) Resolution {
	return Resolution{Action: domain.ActionUnknown, Status: StatusProviderError, Err: err}
}
