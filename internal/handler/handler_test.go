package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/reporting"
	"wallet-score-lab/internal/storage"
	"wallet-score-lab/internal/storage/memory"
)

const (
	walletA = "0x00000000000000000000000000000000000000aa"
	walletB = "0x00000000000000000000000000000000000000bb"
)

var scoredAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func newEngine(t *testing.T, scores storage.ScoreStore, features storage.FeatureStore) *gin.Engine {
	t.Helper()
	r := gin.New()
	(&HealthHandler{Status: func() any { return gin.H{"running": false} }}).Register(r)
	(&ScoreHandler{Scores: scores, Features: features}).Register(r)
	return r
}

func seeded(t *testing.T) (*memory.ScoreStore, *memory.FeatureStore) {
	t.Helper()
	ctx := context.Background()
	scores := memory.NewScoreStore()
	features := memory.NewFeatureStore()

	require.NoError(t, scores.InsertRun(ctx,
		&domain.ScoringRun{RunID: "old", ScoredAt: scoredAt.Add(-time.Hour), WalletCount: 1},
		[]*domain.ScoreRecord{{WalletID: walletA, Score: 10}},
	))
	require.NoError(t, scores.InsertRun(ctx,
		&domain.ScoringRun{RunID: "new", ScoredAt: scoredAt, WalletCount: 2, PopulationHash: "abc"},
		[]*domain.ScoreRecord{{WalletID: walletB, Score: 0}, {WalletID: walletA, Score: 1000}},
	))
	require.NoError(t, features.InsertBulk(ctx, "new", []*domain.WalletFeatureVector{
		domain.NewWalletFeatureVector(walletA, 3, decimal.RequireFromString("1.5"), scoredAt.Add(-72*time.Hour), scoredAt),
	}))
	return scores, features
}

func get(t *testing.T, r http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealth(t *testing.T) {
	r := newEngine(t, memory.NewScoreStore(), nil)
	w, _ := get(t, r, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "pipeline")
}

func TestMetrics(t *testing.T) {
	r := newEngine(t, memory.NewScoreStore(), nil)
	w, _ := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# TYPE")
}

func TestLatestRun(t *testing.T) {
	scores, features := seeded(t)
	w, env := get(t, newEngine(t, scores, features), "/runs/latest")
	require.Equal(t, http.StatusOK, w.Code)

	var run runView
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, "new", run.RunID)
	assert.Equal(t, 2, run.WalletCount)
	assert.Equal(t, "abc", run.PopulationHash)
	assert.True(t, scoredAt.Equal(run.ScoredAt))
}

func TestLatestRun_NoRuns(t *testing.T) {
	w, env := get(t, newEngine(t, memory.NewScoreStore(), nil), "/runs/latest")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.Code)
}

func TestGetRun(t *testing.T) {
	scores, _ := seeded(t)
	r := newEngine(t, scores, nil)

	w, env := get(t, r, "/runs/old")
	require.Equal(t, http.StatusOK, w.Code)
	var run runView
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, "old", run.RunID)

	w, _ = get(t, r, "/runs/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunScores(t *testing.T) {
	scores, _ := seeded(t)
	r := newEngine(t, scores, nil)

	w, env := get(t, r, "/runs/new/scores")
	require.Equal(t, http.StatusOK, w.Code)

	var out []scoreView
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, []scoreView{{WalletID: walletA, Score: 1000}, {WalletID: walletB, Score: 0}}, out)
	assert.EqualValues(t, 2, env.Meta["count"])

	w, _ = get(t, r, "/runs/missing/scores")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWalletScore(t *testing.T) {
	scores, features := seeded(t)
	r := newEngine(t, scores, features)

	// mixed case and no prefix resolve to the canonical wallet
	w, env := get(t, r, "/scores/00000000000000000000000000000000000000AA")
	require.Equal(t, http.StatusOK, w.Code)

	var out walletScoreView
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "new", out.RunID)
	assert.Equal(t, walletA, out.WalletID)
	assert.Equal(t, 1000, out.Score)
	require.NotNil(t, out.Features)
	assert.Equal(t, int64(3), out.Features.TxCount)
	assert.Equal(t, "1.5", out.Features.TotalValue)
	assert.Equal(t, int64(4), out.Features.ActiveDays)
	assert.Equal(t, int64(3), out.Features.WalletAgeDays)

	w, env = get(t, r, "/scores/"+walletB)
	require.Equal(t, http.StatusOK, w.Code)
	var outB walletScoreView
	require.NoError(t, json.Unmarshal(env.Data, &outB))
	assert.Equal(t, 0, outB.Score)
	assert.Nil(t, outB.Features)
}

func TestWalletScore_Errors(t *testing.T) {
	scores, _ := seeded(t)
	r := newEngine(t, scores, nil)

	w, _ := get(t, r, "/scores/not-a-wallet")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = get(t, r, "/scores/0x00000000000000000000000000000000000000cc")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = get(t, newEngine(t, memory.NewScoreStore(), nil), "/scores/"+walletA)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type failingScores struct{ storage.ScoreStore }

func (failingScores) LatestRun(context.Context) (*domain.ScoringRun, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailureIs500(t *testing.T) {
	w, env := get(t, newEngine(t, failingScores{}, nil), "/runs/latest")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", env.Message)
}

func TestReport(t *testing.T) {
	scores, features := seeded(t)
	r := gin.New()
	(&ScoreHandler{Scores: scores, Features: features}).Register(r)
	(&ReportHandler{Generator: reporting.NewGenerator(scores, features)}).Register(r)

	w, _ := get(t, r, "/runs/latest/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Run: new")

	w, _ = get(t, r, "/runs/old/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Run: old")

	w, _ = get(t, r, "/runs/new/distribution.csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "900,1000,1")

	w, _ = get(t, r, "/runs/missing/report")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func transactionEngine(t *testing.T, txs storage.TransactionStore) *gin.Engine {
	t.Helper()
	r := gin.New()
	(&TransactionHandler{Transactions: txs}).Register(r)
	return r
}

func seededTransactions(t *testing.T) *memory.TransactionStore {
	t.Helper()
	txs := memory.NewTransactionStore()
	require.NoError(t, txs.InsertBulk(context.Background(), []*domain.TransactionRecord{
		{Wallet: walletA, TxHash: "0x02", Timestamp: scoredAt, To: "0xpool", Action: "repay", Value: "0"},
		{Wallet: walletA, TxHash: "0x01", Timestamp: scoredAt.Add(-time.Hour), To: "0xpool", Action: "borrow", Value: "10"},
		{Wallet: walletB, TxHash: "0x03", Timestamp: scoredAt, To: "0xpool", Action: domain.ActionUnknown, Value: "0"},
	}))
	return txs
}

func TestWalletTransactions(t *testing.T) {
	r := transactionEngine(t, seededTransactions(t))

	w, env := get(t, r, "/wallets/0x00000000000000000000000000000000000000AA/transactions")
	require.Equal(t, http.StatusOK, w.Code)
	var out []transactionView
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "0x01", out[0].TxHash)
	assert.Equal(t, "borrow", out[0].Action)
	assert.Equal(t, "0x02", out[1].TxHash)
	assert.Equal(t, walletA, env.Meta["wallet"])
	assert.EqualValues(t, 2, env.Meta["count"])

	w, _ = get(t, r, "/wallets/not-a-wallet/transactions")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = get(t, r, "/wallets/0x00000000000000000000000000000000000000cc/transactions")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTransactions(t *testing.T) {
	r := transactionEngine(t, seededTransactions(t))

	w, env := get(t, r, "/transactions")
	require.Equal(t, http.StatusOK, w.Code)
	var out []transactionView
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Len(t, out, 3)

	w, env = get(t, r, "/transactions?action=unknown")
	require.Equal(t, http.StatusOK, w.Code)
	out = nil
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, walletB, out[0].Wallet)

	w, env = get(t, r, "/transactions?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	out = nil
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Len(t, out, 1)
	assert.EqualValues(t, 1, env.Meta["count"])
	assert.EqualValues(t, 3, env.Meta["total"])

	w, _ = get(t, r, "/transactions?limit=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type failingTransactions struct{ storage.TransactionStore }

func (failingTransactions) GetAll(context.Context) ([]*domain.TransactionRecord, error) {
	return nil, errors.New("connection refused")
}

func TestListTransactions_StoreFailureIs500(t *testing.T) {
	w, env := get(t, transactionEngine(t, failingTransactions{}), "/transactions")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", env.Message)
}
