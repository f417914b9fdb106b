package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrLocked is returned by Lock when another process holds the database.
	ErrLocked = errors.New("history database is locked by another process")
)

// Store manages history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the history database and applies migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts a new run and returns it with a fresh ID.
func (s *Store) BeginRun(ctx context.Context, kind Kind, puzzlePath string, puzzleW, puzzleH int) (*Run, error) {
	run := &Run{
		ID:           uuid.NewString(),
		Kind:         kind,
		PuzzlePath:   puzzlePath,
		PuzzleWidth:  puzzleW,
		PuzzleHeight: puzzleH,
		CreatedAt:    s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, puzzle_path, puzzle_width, puzzle_height, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.PuzzlePath, run.PuzzleWidth, run.PuzzleHeight,
		run.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Record stores an outcome under runID and returns it with its ID set.
func (s *Store) Record(ctx context.Context, runID string, o Outcome) (*Outcome, error) {
	o.RunID = runID
	o.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (
            run_id, piece_path, x, y, scale, piece_width, piece_height,
            similarity, mean_abs_diff, coarse_score, metric, device, error, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.PiecePath, o.X, o.Y, o.Scale, o.PieceWidth, o.PieceHeight,
		o.Similarity, o.MeanAbsDiff, o.CoarseScore, o.Metric, o.Device, o.Error,
		o.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert outcome: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("outcome id: %w", err)
	}
	o.ID = id
	return &o, nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, puzzle_path, puzzle_width, puzzle_height, created_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first; limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.kind, r.puzzle_path, r.puzzle_width, r.puzzle_height, r.created_at,
                COUNT(o.id),
                COALESCE(SUM(CASE WHEN o.error <> '' THEN 1 ELSE 0 END), 0),
                COALESCE(MAX(CASE WHEN o.error = '' THEN o.similarity END), 0)
         FROM runs r
         LEFT JOIN outcomes o ON o.run_id = r.id
         GROUP BY r.id
         ORDER BY r.created_at DESC, r.rowid DESC
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum     RunSummary
			kind    string
			created string
		)
		if err := rows.Scan(&sum.ID, &kind, &sum.PuzzlePath, &sum.PuzzleWidth, &sum.PuzzleHeight, &created,
			&sum.Pieces, &sum.Failed, &sum.BestSimilarity); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sum.Kind = Kind(kind)
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Outcomes returns the outcomes of a run in insertion order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, piece_path, x, y, scale, piece_width, piece_height,
                similarity, mean_abs_diff, coarse_score, metric, device, error, created_at
         FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o       Outcome
			created string
		)
		if err := rows.Scan(&o.ID, &o.RunID, &o.PiecePath, &o.X, &o.Y, &o.Scale, &o.PieceWidth, &o.PieceHeight,
			&o.Similarity, &o.MeanAbsDiff, &o.CoarseScore, &o.Metric, &o.Device, &o.Error, &created); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if o.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

// DeleteRun removes a run and its outcomes.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run     Run
		kind    string
		created string
	)
	if err := row.Scan(&run.ID, &kind, &run.PuzzlePath, &run.PuzzleWidth, &run.PuzzleHeight, &created); err != nil {
		return nil, err
	}
	run.Kind = Kind(kind)
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = t
	return &run, nil
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

// Lock takes an exclusive advisory lock on "<dbPath>.lock". It fails with
// ErrLocked when another process already holds it. Release with Unlock.
func Lock(dbPath string) (*flock.Flock, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}
	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return lock, nil
}
