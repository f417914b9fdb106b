package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ironsheep/puzzle-match/internal/match"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// tick makes the store clock advance one second per call.
func tick(store *Store) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	store.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.BeginRun(ctx, KindMatch, "puzzle.png", 800, 600); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected run to survive reopen, got %d", len(runs))
	}
	if reopened.Path() != path {
		t.Fatalf("Path = %q", reopened.Path())
	}
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	tick(store)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, KindMatch, "/tmp/puzzle.png", 1000, 800)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run ID")
	}

	outcome := &match.Outcome{
		X: 10, Y: 20, Scale: 1.2, PieceWidth: 120, PieceHeight: 96,
		Similarity: 0.93, MeanAbsDiff: 17.85, CoarseScore: 0.01,
		Metric: match.SqDiffNormed, Device: match.DeviceCPU,
	}
	rec, err := store.Record(ctx, run.ID, FromMatch("a.png", outcome))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.ID == 0 || rec.RunID != run.ID {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := store.Record(ctx, run.ID, Failure("b.png", match.ErrPieceExceedsPuzzle)); err != nil {
		t.Fatalf("Record failure failed: %v", err)
	}

	later, err := store.BeginRun(ctx, KindScan, "/tmp/other.png", 50, 50)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != later.ID || runs[1].ID != run.ID {
		t.Fatalf("expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
	first := runs[1]
	if first.Pieces != 2 || first.Failed != 1 || first.BestSimilarity != 0.93 {
		t.Fatalf("unexpected summary %+v", first)
	}
	if runs[0].Pieces != 0 || runs[0].BestSimilarity != 0 {
		t.Fatalf("empty run summary %+v", runs[0])
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != later.ID {
		t.Fatalf("limit not applied: %+v", limited)
	}

	outs, err := store.Outcomes(ctx, run.ID)
	if err != nil {
		t.Fatalf("Outcomes failed: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outs))
	}
	got := outs[0]
	if got.PiecePath != "a.png" || got.X != 10 || got.Y != 20 || got.Scale != 1.2 ||
		got.Metric != "SQDIFF_NORMED" || got.Device != "cpu" || got.Error != "" {
		t.Fatalf("unexpected outcome %+v", got)
	}
	if outs[1].Error == "" || outs[1].PiecePath != "b.png" {
		t.Fatalf("expected failure outcome, got %+v", outs[1])
	}
	if !got.CreatedAt.After(run.CreatedAt) {
		t.Fatalf("outcome time %v not after run time %v", got.CreatedAt, run.CreatedAt)
	}
}

func TestGetAndDeleteRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, KindScan, "p.png", 10, 10)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	scan := &match.ScanOutcome{X: 3, Y: 4, BestDiff: 0, Similarity: 1, PositionsEvaluated: 9, Stride: 1}
	if _, err := store.Record(ctx, run.ID, FromScan("piece.png", 5, 5, scan)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Kind != KindScan || got.PuzzleWidth != 10 || !got.CreatedAt.Equal(run.CreatedAt.Truncate(time.Nanosecond)) {
		t.Fatalf("unexpected run %+v", got)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := store.GetRun(ctx, run.ID); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	outs, err := store.Outcomes(ctx, run.ID)
	if err != nil {
		t.Fatalf("Outcomes failed: %v", err)
	}
	if len(outs) != 0 {
		t.Fatalf("expected outcomes to cascade, got %d", len(outs))
	}
	if err := store.DeleteRun(ctx, run.ID); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on second delete, got %v", err)
	}
}

func TestRecordUnknownRun(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Record(context.Background(), "missing", Outcome{PiecePath: "x.png"}); err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	lock, err := Lock(path)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if _, err := Lock(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	again, err := Lock(path)
	if err != nil {
		t.Fatalf("Lock after unlock failed: %v", err)
	}
	_ = again.Unlock()
}
