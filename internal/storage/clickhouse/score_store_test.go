package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

func TestScoreStore_InsertRunAndRead(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewScoreStore(conn)
	ctx := context.Background()

	run := &domain.ScoringRun{RunID: "run-1", ScoredAt: t0, WalletCount: 2, PopulationHash: "abc"}
	require.NoError(t, store.InsertRun(ctx, run, []*domain.ScoreRecord{
		{WalletID: "0xb", Score: 1000},
		{WalletID: "0xa", Score: 0},
	}))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.WalletCount)
	assert.Equal(t, "abc", got.PopulationHash)
	assert.True(t, got.ScoredAt.Equal(t0))

	scores, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []*domain.ScoreRecord{{WalletID: "0xa", Score: 0}, {WalletID: "0xb", Score: 1000}}, scores)

	sc, err := store.GetScore(ctx, "run-1", "0xb")
	require.NoError(t, err)
	assert.Equal(t, 1000, sc.Score)

	_, err = store.GetScore(ctx, "run-1", "0xz")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScoreStore_LatestRun(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewScoreStore(conn)
	ctx := context.Background()

	_, err := store.LatestRun(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.InsertRun(ctx, &domain.ScoringRun{RunID: "old", ScoredAt: t0}, nil))
	require.NoError(t, store.InsertRun(ctx, &domain.ScoringRun{RunID: "new", ScoredAt: t0.Add(time.Hour)}, nil))

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.RunID)
}

func TestScoreStore_Duplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewScoreStore(conn)
	ctx := context.Background()

	run := &domain.ScoringRun{RunID: "run-1", ScoredAt: t0}
	require.NoError(t, store.InsertRun(ctx, run, nil))
	assert.ErrorIs(t, store.InsertRun(ctx, run, nil), storage.ErrDuplicateKey)

	other := &domain.ScoringRun{RunID: "run-2", ScoredAt: t0}
	err := store.InsertRun(ctx, other, []*domain.ScoreRecord{{WalletID: "0xa"}, {WalletID: "0xa"}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
