// Package ledger keeps a sqlite history of weave runs so build servers can
// answer "what did the weaver do to this module, and when".
package ledger

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"varweave/internal/logging"
)

// Run is one recorded weave.
type Run struct {
	ID           string
	Input        string
	Output       string
	InputDigest  []byte
	OutputDigest []byte
	Changed      bool
	Patched      int
	Warnings     int
	Errors       int
	Signed       bool
	DryRun       bool
	Duration     time.Duration
	StartedAt    time.Time
}

// ShortDigest renders the first bytes of a digest for display.
func ShortDigest(d []byte) string {
	if len(d) > 6 {
		d = d[:6]
	}
	return hex.EncodeToString(d)
}

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the run ledger database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Get(logging.CategoryLedger).Debug("ledger opened", zap.String("path", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		output TEXT NOT NULL,
		input_digest BLOB,
		output_digest BLOB,
		changed INTEGER NOT NULL,
		patched INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		signed INTEGER NOT NULL,
		dry_run INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		started_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_input ON runs(input);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores r, assigning an ID and start time when they are unset.
func (s *Store) Record(ctx context.Context, r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, input, output, input_digest, output_digest, changed,
			patched, warnings, errors, signed, dry_run, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Input, r.Output, r.InputDigest, r.OutputDigest, boolInt(r.Changed),
		r.Patched, r.Warnings, r.Errors, boolInt(r.Signed), boolInt(r.DryRun),
		r.Duration.Milliseconds(), r.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	logging.Get(logging.CategoryLedger).Debug("run recorded",
		zap.String("id", r.ID),
		zap.String("input", r.Input),
		zap.Bool("changed", r.Changed))
	return nil
}

// Recent returns up to limit runs, newest first. A non-positive limit
// defaults to 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input, output, input_digest, output_digest, changed, patched,
			warnings, errors, signed, dry_run, duration_ms, started_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                       Run
			changed, signed, dryRun int
			durationMS              int64
			started                 string
		)
		if err := rows.Scan(&r.ID, &r.Input, &r.Output, &r.InputDigest, &r.OutputDigest,
			&changed, &r.Patched, &r.Warnings, &r.Errors, &signed, &dryRun,
			&durationMS, &started); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Changed = changed != 0
		r.Signed = signed != 0
		r.DryRun = dryRun != 0
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: bad timestamp %q: %w", r.ID, started, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
