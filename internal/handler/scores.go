package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

// ScoreHandler exposes stored scoring runs.
type ScoreHandler struct {
	Scores   storage.ScoreStore
	Features storage.FeatureStore // optional
	Logger   *zap.Logger
}

type runView struct {
	RunID          string    `json:"run_id"`
	ScoredAt       time.Time `json:"scored_at"`
	WalletCount    int       `json:"wallet_count"`
	PopulationHash string    `json:"population_hash"`
}

type scoreView struct {
	WalletID string `json:"wallet_id"`
	Score    int    `json:"score"`
}

type featureView struct {
	TxCount       int64     `json:"tx_count"`
	TotalValue    string    `json:"total_value"`
	FirstTx       time.Time `json:"first_tx"`
	LastTx        time.Time `json:"last_tx"`
	ActiveDays    int64     `json:"active_days"`
	WalletAgeDays int64     `json:"wallet_age_days"`
}

type walletScoreView struct {
	RunID    string       `json:"run_id"`
	WalletID string       `json:"wallet_id"`
	Score    int          `json:"score"`
	Features *featureView `json:"features,omitempty"`
}

func (h *ScoreHandler) Register(r *gin.Engine) {
	r.GET("/runs/latest", h.latestRun)
	r.GET("/runs/:run_id", h.getRun)
	r.GET("/runs/:run_id/scores", h.runScores)
	r.GET("/scores/:wallet", h.walletScore)
}

func (h *ScoreHandler) latestRun(c *gin.Context) {
	run, err := h.Scores.LatestRun(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "no scoring run yet")
		return
	}
	Ok(c, toRunView(run), nil)
}

func (h *ScoreHandler) getRun(c *gin.Context) {
	run, err := h.Scores.GetRun(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		h.storeError(c, err, "run not found")
		return
	}
	Ok(c, toRunView(run), nil)
}

func (h *ScoreHandler) runScores(c *gin.Context) {
	ctx := c.Request.Context()
	run, err := h.Scores.GetRun(ctx, c.Param("run_id"))
	if err != nil {
		h.storeError(c, err, "run not found")
		return
	}
	scores, err := h.Scores.GetByRun(ctx, run.RunID)
	if err != nil {
		h.storeError(c, err, "run not found")
		return
	}
	out := make([]scoreView, 0, len(scores))
	for _, s := range scores {
		out = append(out, scoreView{WalletID: s.WalletID, Score: s.Score})
	}
	Ok(c, out, map[string]any{"run_id": run.RunID, "count": len(out)})
}

// walletScore returns the wallet's score in the latest run.
func (h *ScoreHandler) walletScore(c *gin.Context) {
	wallet, err := domain.CanonicalWallet(c.Param("wallet"))
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx := c.Request.Context()
	run, err := h.Scores.LatestRun(ctx)
	if err != nil {
		h.storeError(c, err, "no scoring run yet")
		return
	}
	score, err := h.Scores.GetScore(ctx, run.RunID, wallet)
	if err != nil {
		h.storeError(c, err, "wallet not scored in latest run")
		return
	}

	Ok(c, walletScoreView{
		RunID:    run.RunID,
		WalletID: score.WalletID,
		Score:    score.Score,
		Features: h.features(ctx, run.RunID, wallet),
	}, nil)
}

func (h *ScoreHandler) features(ctx context.Context, runID, wallet string) *featureView {
	if h.Features == nil {
		return nil
	}
	v, err := h.Features.GetByWallet(ctx, runID, wallet)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger().Warn("feature lookup failed", zap.String("wallet", wallet), zap.Error(err))
		}
		return nil
	}
	return &featureView{
		TxCount:       v.TxCount,
		TotalValue:    v.TotalValue.String(),
		FirstTx:       v.FirstTx,
		LastTx:        v.LastTx,
		ActiveDays:    v.ActiveDays,
		WalletAgeDays: v.WalletAgeDays,
	}
}

func (h *ScoreHandler) storeError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, storage.ErrNotFound) {
		Error(c, http.StatusNotFound, notFound, nil)
		return
	}
	h.logger().Error("score store query failed", zap.String("path", c.FullPath()), zap.Error(err))
	Error(c, http.StatusInternalServerError, "internal error", nil)
}

func (h *ScoreHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func toRunView(r *domain.ScoringRun) runView {
	return runView{
		RunID:          r.RunID,
		ScoredAt:       r.ScoredAt,
		WalletCount:    r.WalletCount,
		PopulationHash: r.PopulationHash,
	}
}
