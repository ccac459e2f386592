package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	_ "modernc.org/sqlite"

	"blindtest/internal/config"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("export run not found")

// Store manages export history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// timeLayout keeps a fixed fraction width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, project, output, items, clip_duration, status, frame, total_frames, error_message, pid, started_at, finished_at"

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the history database under the configured
// data directory and settles runs orphaned by dead processes.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryDBPath())
}

// OpenPath opens the history database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	ctx := context.Background()
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := store.MarkInterrupted(ctx, ProcessAlive); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Begin records a new running export and returns it with its assigned ID.
func (s *Store) Begin(ctx context.Context, run Run) (Run, error) {
	if strings.TrimSpace(run.Output) == "" {
		return Run{}, errors.New("begin export run: output required")
	}
	run.ID = uuid.NewString()
	run.Status = StatusRunning
	run.StartedAt = time.Now().UTC()
	run.FinishedAt = nil
	run.Error = ""

	_, err := s.execWithRetry(ctx,
		`INSERT INTO export_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		run.ID, run.Project, run.Output, run.Items, run.ClipDuration, run.Status,
		int64(run.Frame), int64(run.TotalFrames), run.Error, os.Getpid(),
		run.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert export run: %w", err)
	}
	return run, nil
}

// UpdateFrame stores the latest frame count of a running export.
func (s *Store) UpdateFrame(ctx context.Context, id string, frame uint64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE export_runs SET frame = ? WHERE id = ? AND status = ?`,
		int64(frame), id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update export frame: %w", err)
	}
	return requireRow(res, id)
}

// Finish records the terminal status of an export. runErr is stored as the
// error message when non-nil.
func (s *Store) Finish(ctx context.Context, id string, status Status, frame uint64, runErr error) error {
	if !status.Terminal() {
		return fmt.Errorf("finish export run: status %q is not terminal", status)
	}
	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE export_runs SET status = ?, frame = MAX(frame, ?), error_message = ?, finished_at = ? WHERE id = ?`,
		status, int64(frame), message, time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("finish export run: %w", err)
	}
	return requireRow(res, id)
}

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM export_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get export run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first. A limit <= 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM export_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list export runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkInterrupted settles running exports whose owning process is gone and
// returns how many were updated.
func (s *Store) MarkInterrupted(ctx context.Context, alive func(pid int) bool) (int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT id, pid FROM export_runs WHERE status = ?`, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("query running exports: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		var pid int
		if err := rows.Scan(&id, &pid); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan running export: %w", err)
		}
		if alive == nil || !alive(pid) {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	finished := time.Now().UTC().Format(timeLayout)
	for _, id := range stale {
		if _, err := s.execWithRetry(ctx,
			`UPDATE export_runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ? AND status = ?`,
			StatusInterrupted, InterruptedReason, finished, id, StatusRunning,
		); err != nil {
			return 0, fmt.Errorf("mark export interrupted: %w", err)
		}
	}
	return len(stale), nil
}

// ProcessAlive reports whether a process with pid exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run         Run
		status      string
		frame       int64
		totalFrames int64
		pid         int
		startedAt   string
		finishedAt  sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Project, &run.Output, &run.Items, &run.ClipDuration,
		&status, &frame, &totalFrames, &run.Error, &pid, &startedAt, &finishedAt); err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	run.Frame = uint64(max(frame, 0))
	run.TotalFrames = uint64(max(totalFrames, 0))
	if ts, err := parseTimeString(startedAt); err == nil {
		run.StartedAt = ts
	}
	if finishedAt.Valid {
		if ts, err := parseTimeString(finishedAt.String); err == nil {
			run.FinishedAt = &ts
		}
	}
	return run, nil
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
