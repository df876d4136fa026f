package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

func TestScoreStore_InsertRunAndGet(t *testing.T) {
	store := NewScoreStore()
	ctx := context.Background()

	run := &domain.ScoringRun{RunID: "run-1", ScoredAt: t0, WalletCount: 2, PopulationHash: "h"}
	scores := []*domain.ScoreRecord{{WalletID: "0xb", Score: 1000}, {WalletID: "0xa", Score: 0}}

	if err := store.InsertRun(ctx, run, scores); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.WalletCount != 2 || !got.ScoredAt.Equal(t0) || got.PopulationHash != "h" {
		t.Errorf("unexpected run: %+v", got)
	}

	recs, err := store.GetByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(recs) != 2 || recs[0].WalletID != "0xa" || recs[1].Score != 1000 {
		t.Errorf("unexpected scores: %+v", recs)
	}

	sc, err := store.GetScore(ctx, "run-1", "0xb")
	if err != nil || sc.Score != 1000 {
		t.Errorf("GetScore = %+v, %v", sc, err)
	}
}

func TestScoreStore_LatestRun(t *testing.T) {
	store := NewScoreStore()
	ctx := context.Background()

	if _, err := store.LatestRun(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	_ = store.InsertRun(ctx, &domain.ScoringRun{RunID: "old", ScoredAt: t0}, nil)
	_ = store.InsertRun(ctx, &domain.ScoringRun{RunID: "new", ScoredAt: t0.Add(time.Hour)}, nil)
	_ = store.InsertRun(ctx, &domain.ScoringRun{RunID: "mid", ScoredAt: t0.Add(time.Minute)}, nil)

	latest, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest.RunID != "new" {
		t.Errorf("LatestRun = %s, want new", latest.RunID)
	}
}

func TestScoreStore_Errors(t *testing.T) {
	store := NewScoreStore()
	ctx := context.Background()

	if err := store.InsertRun(ctx, &domain.ScoringRun{}, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	run := &domain.ScoringRun{RunID: "run-1", ScoredAt: t0}
	dupScores := []*domain.ScoreRecord{{WalletID: "0xa", Score: 1}, {WalletID: "0xa", Score: 2}}
	if err := store.InsertRun(ctx, run, dupScores); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for repeated wallet, got %v", err)
	}

	_ = store.InsertRun(ctx, run, nil)
	if err := store.InsertRun(ctx, run, nil); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for repeated run, got %v", err)
	}

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetScore(ctx, "run-1", "0xa"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
