package perfcore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteRecorder is an Observer that persists tier changes and prediction
// outcomes to a SQLite database. Rows are buffered and written in batches;
// pending rows are flushed on Close and at process exit.
type SQLiteRecorder struct {
	mu sync.Mutex

	db          *sql.DB
	changeStmt  *sql.Stmt
	outcomeStmt *sql.Stmt

	path      string
	session   string
	batchSize int
	logger    *slog.Logger

	changes  []TierChange
	outcomes []PredictionOutcome
	lastErr  error
	closed   bool
}

// NewSQLiteRecorder creates the database at path. An empty path generates a
// unique file name in the working directory. The file must not exist yet.
func NewSQLiteRecorder(path string, batchSize int, logger *slog.Logger) (*SQLiteRecorder, error) {
	session := xid.New().String()
	if path == "" {
		path = "perfcore_" + session + ".sqlite3"
	}
	if batchSize <= 0 {
		batchSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("recorder: file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", path, err)
	}

	r := &SQLiteRecorder{
		db:        db,
		path:      path,
		session:   session,
		batchSize: batchSize,
		logger:    logger,
	}
	if err := r.init(); err != nil {
		db.Close()
		return nil, err
	}

	atexit.Register(func() { _ = r.Close() })
	logger.Info("recording decisions", "db", path, "session", session)
	return r, nil
}

func (r *SQLiteRecorder) init() error {
	for _, q := range []string{
		`CREATE TABLE IF NOT EXISTS tier_changes
		(
			session  VARCHAR(40)  NOT NULL,
			at       INTEGER      NOT NULL,
			from_tier VARCHAR(10) NOT NULL,
			to_tier  VARCHAR(10)  NOT NULL,
			clock_hz INTEGER      NOT NULL,
			rule     VARCHAR(20)  NOT NULL,
			reason   VARCHAR(200) NULL
		);`,
		`CREATE INDEX IF NOT EXISTS tier_changes_at_index ON tier_changes (at);`,
		`CREATE TABLE IF NOT EXISTS predictions
		(
			session     VARCHAR(40) NOT NULL,
			issued_at   INTEGER     NOT NULL,
			resolved_at INTEGER     NOT NULL,
			trigger_type VARCHAR(30) NOT NULL,
			target_type VARCHAR(30) NOT NULL,
			actual_type VARCHAR(30) NULL,
			tier        VARCHAR(10) NOT NULL,
			result      VARCHAR(10) NOT NULL,
			accuracy    REAL        NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS predictions_result_index ON predictions (result);`,
	} {
		if _, err := r.db.Exec(q); err != nil {
			return fmt.Errorf("recorder: create schema: %w", err)
		}
	}

	var err error
	r.changeStmt, err = r.db.Prepare(
		`INSERT INTO tier_changes (session, at, from_tier, to_tier, clock_hz, rule, reason) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("recorder: prepare tier_changes: %w", err)
	}
	r.outcomeStmt, err = r.db.Prepare(
		`INSERT INTO predictions (session, issued_at, resolved_at, trigger_type, target_type, actual_type, tier, result, accuracy) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("recorder: prepare predictions: %w", err)
	}
	return nil
}

// Path returns the database file.
func (r *SQLiteRecorder) Path() string { return r.path }

// Session returns the identifier written with every row.
func (r *SQLiteRecorder) Session() string { return r.session }

// TierChanged implements Observer.
func (r *SQLiteRecorder) TierChanged(c TierChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.changes = append(r.changes, c)
	if len(r.changes)+len(r.outcomes) >= r.batchSize {
		r.flushLocked()
	}
}

// PredictionResolved implements Observer.
func (r *SQLiteRecorder) PredictionResolved(p PredictionOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.outcomes = append(r.outcomes, p)
	if len(r.changes)+len(r.outcomes) >= r.batchSize {
		r.flushLocked()
	}
}

// Flush writes buffered rows and returns the first write error seen since
// the previous Flush.
func (r *SQLiteRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
	err := r.lastErr
	r.lastErr = nil
	return err
}

func (r *SQLiteRecorder) flushLocked() {
	if r.closed || len(r.changes)+len(r.outcomes) == 0 {
		return
	}
	if err := r.write(); err != nil {
		r.logger.Error("recorder flush failed", "err", err,
			"tier_changes", len(r.changes), "predictions", len(r.outcomes))
		if r.lastErr == nil {
			r.lastErr = err
		}
	}
	r.changes = r.changes[:0]
	r.outcomes = r.outcomes[:0]
}

func (r *SQLiteRecorder) write() error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("recorder: begin: %w", err)
	}
	changeStmt := tx.Stmt(r.changeStmt)
	outcomeStmt := tx.Stmt(r.outcomeStmt)

	for _, c := range r.changes {
		if _, err := changeStmt.Exec(r.session, c.At.UnixNano(), c.From.String(), c.To.String(),
			int64(c.Clock), string(c.Rule), c.Reason); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recorder: insert tier change: %w", err)
		}
	}
	for _, p := range r.outcomes {
		if _, err := outcomeStmt.Exec(r.session, p.IssuedAt.UnixNano(), p.ResolvedAt.UnixNano(),
			string(p.Trigger), string(p.Target), nullable(string(p.Actual)), p.Tier.String(),
			string(p.Result), p.Accuracy); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recorder: insert prediction: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recorder: commit: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close flushes and closes the database. Closing twice is a no-op.
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.flushLocked()
	r.closed = true

	err := r.lastErr
	r.lastErr = nil
	return errors.Join(err, r.changeStmt.Close(), r.outcomeStmt.Close(), r.db.Close())
}

// TierChanges reads back every persisted tier change of this session in
// order.
func (r *SQLiteRecorder) TierChanges() ([]TierChange, error) {
	if err := r.Flush(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(
		`SELECT at, from_tier, to_tier, clock_hz, rule, reason FROM tier_changes WHERE session = ? ORDER BY rowid`,
		r.session)
	if err != nil {
		return nil, fmt.Errorf("recorder: query tier changes: %w", err)
	}
	defer rows.Close()

	var out []TierChange
	for rows.Next() {
		var (
			at       int64
			from, to string
			clock    int64
			rule     string
			reason   sql.NullString
		)
		if err := rows.Scan(&at, &from, &to, &clock, &rule, &reason); err != nil {
			return nil, fmt.Errorf("recorder: scan tier change: %w", err)
		}
		fromTier, err := ParseTier(from)
		if err != nil {
			return nil, err
		}
		toTier, err := ParseTier(to)
		if err != nil {
			return nil, err
		}
		out = append(out, TierChange{
			At:     time.Unix(0, at),
			From:   fromTier,
			To:     toTier,
			Clock:  Freq(clock),
			Rule:   TierRule(rule),
			Reason: reason.String,
		})
	}
	return out, rows.Err()
}

// PredictionCounts returns the number of persisted outcomes of this session
// per result.
func (r *SQLiteRecorder) PredictionCounts() (map[PredictionResult]int, error) {
	if err := r.Flush(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(
		`SELECT result, COUNT(*) FROM predictions WHERE session = ? GROUP BY result`, r.session)
	if err != nil {
		return nil, fmt.Errorf("recorder: query predictions: %w", err)
	}
	defer rows.Close()

	out := make(map[PredictionResult]int)
	for rows.Next() {
		var (
			result string
			n      int
		)
		if err := rows.Scan(&result, &n); err != nil {
			return nil, fmt.Errorf("recorder: scan prediction: %w", err)
		}
		out[PredictionResult(result)] = n
	}
	return out, rows.Err()
}
