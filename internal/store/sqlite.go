package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/nsreview/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; the MCP server and a scheduled run may share the file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NewRunID generates a ULID for a run started at t, so IDs sort by start time.
func NewRunID(t time.Time) string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Runs ---

// SaveRun persists a run report with its actions and errors in one
// transaction. An empty report ID is assigned from the start time.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *models.RunReport) error {
	if r.ID == "" {
		r.ID = NewRunID(r.StartedAt)
	}
	counts, err := json.Marshal(r.PhaseCounts)
	if err != nil {
		return fmt.Errorf("encode phase counts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, dry_run, total_issues, processed, skipped, phase_counts, artifacts_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(), boolToInt(r.DryRun), r.TotalIssues, r.Processed, r.Skipped, string(counts), r.ArtifactsDir,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	for _, a := range r.Actions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_actions (run_id, repo, issue_number, phase, action, success, error, dry_run, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, a.Repo, a.IssueNumber, string(a.Phase), a.Action, boolToInt(a.Success), a.Error, boolToInt(a.DryRun), a.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("save run action: %w", err)
		}
	}

	for _, e := range r.Errors {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_errors (run_id, repo, issue_number, phase, message, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, e.Repo, e.IssueNumber, string(e.Phase), e.Message, e.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("save run error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

// GetRun loads a full run report by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.RunReport, error) {
	r := &models.RunReport{}
	var counts string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, dry_run, total_issues, processed, skipped, phase_counts, artifacts_dir
		FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DryRun, &r.TotalIssues, &r.Processed, &r.Skipped, &counts, &r.ArtifactsDir)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := json.Unmarshal([]byte(counts), &r.PhaseCounts); err != nil {
		return nil, fmt.Errorf("decode phase counts: %w", err)
	}

	r.Actions, err = s.queryActions(ctx,
		`SELECT repo, issue_number, phase, action, success, error, dry_run, created_at
		FROM run_actions WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT repo, issue_number, phase, message, created_at
		FROM run_errors WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list run errors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e models.ProcessingError
		var phase string
		if err := rows.Scan(&e.Repo, &e.IssueNumber, &phase, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run error: %w", err)
		}
		e.Phase = models.Phase(phase)
		r.Errors = append(r.Errors, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list run errors: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	query := `SELECT r.id, r.started_at, r.finished_at, r.dry_run, r.total_issues, r.processed, r.skipped, r.artifacts_dir,
		(SELECT COUNT(*) FROM run_actions a WHERE a.run_id = r.id),
		(SELECT COUNT(*) FROM run_actions a WHERE a.run_id = r.id AND a.success = 0),
		(SELECT COUNT(*) FROM run_errors e WHERE e.run_id = r.id)
		FROM runs r ORDER BY r.started_at DESC, r.id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*RunSummary
	for rows.Next() {
		r := &RunSummary{}
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DryRun, &r.TotalIssues, &r.Processed, &r.Skipped, &r.ArtifactsDir,
			&r.Actions, &r.FailedActions, &r.Errors); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListIssueActions returns the actions recorded for one issue across runs,
// newest first.
func (s *SQLiteStore) ListIssueActions(ctx context.Context, repo string, number, limit int) ([]models.IssueAction, error) {
	query := `SELECT repo, issue_number, phase, action, success, error, dry_run, created_at
		FROM run_actions WHERE issue_number = ?`
	args := []any{number}
	if repo != "" {
		query += " AND repo = ?"
		args = append(args, repo)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryActions(ctx, query, args...)
}

func (s *SQLiteStore) queryActions(ctx context.Context, query string, args ...any) ([]models.IssueAction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list run actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var actions []models.IssueAction
	for rows.Next() {
		var a models.IssueAction
		var phase string
		if err := rows.Scan(&a.Repo, &a.IssueNumber, &phase, &a.Action, &a.Success, &a.Error, &a.DryRun, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run action: %w", err)
		}
		a.Phase = models.Phase(phase)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// PruneRuns deletes all but the newest keep runs and returns how many were
// removed. Actions and errors go with them.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return result.RowsAffected()
}
