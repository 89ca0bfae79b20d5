package patterns

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/logging"
)

// SQLiteRepository persists patterns in a SQLite database. Rows carry the
// serialized pattern plus a few indexed columns for ad-hoc inspection with
// the sqlite3 shell.
type SQLiteRepository struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	initialized sync.Once
}

// NewSQLiteRepository opens (or creates) the database at path. If path is
// ":memory:", the database lives in-memory.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.PersistenceFailed, "failed to open SQLite database"),
			errors.Fields{"path": path},
		)
	}

	repo := &SQLiteRepository{
		db:   db,
		path: path,
	}
	if err := repo.ensureInitialized(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) ensureInitialized() error {
	var initErr error
	r.initialized.Do(func() {
		// Enable WAL mode for better concurrency
		if _, err := r.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.PersistenceFailed, "failed to enable WAL mode")
			return
		}

		query := `
        CREATE TABLE IF NOT EXISTS automation_patterns (
            id TEXT PRIMARY KEY,
            task_type TEXT NOT NULL,
            success_rate REAL NOT NULL,
            confidence REAL NOT NULL,
            payload TEXT NOT NULL,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );

        CREATE INDEX IF NOT EXISTS idx_automation_patterns_task_type
        ON automation_patterns(task_type);
        `

		if _, err := r.db.Exec(query); err != nil {
			initErr = errors.WithFields(
				errors.Wrap(err, errors.PersistenceFailed, "failed to initialize database"),
				errors.Fields{"query": query},
			)
			return
		}
	})
	return initErr
}

// Load reads every stored pattern.
func (r *SQLiteRepository) Load(ctx context.Context) ([]*AutomationPattern, error) {
	if err := r.ensureInitialized(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, "SELECT payload FROM automation_patterns ORDER BY task_type, id")
	if err != nil {
		return nil, errors.Wrap(err, errors.PersistenceFailed, "failed to query patterns")
	}
	defer rows.Close()

	var loaded []*AutomationPattern
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, errors.PersistenceFailed, "failed to scan pattern row")
		}
		var p AutomationPattern
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, errors.WithFields(
				errors.Wrap(err, errors.PersistenceFailed, "stored pattern is not valid JSON"),
				errors.Fields{"payload": payload},
			)
		}
		loaded = append(loaded, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.PersistenceFailed, "error iterating pattern rows")
	}

	return loaded, nil
}

// Save rewrites the whole collection in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, patterns []*AutomationPattern) error {
	if err := r.ensureInitialized(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.PersistenceFailed, "failed to begin transaction")
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logging.GetLogger().Error(context.Background(), "failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM automation_patterns"); err != nil {
		return errors.Wrap(err, errors.PersistenceFailed, "failed to clear pattern table")
	}

	query := `
    INSERT INTO automation_patterns (id, task_type, success_rate, confidence, payload, updated_at)
    VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
    ON CONFLICT(id) DO UPDATE SET
        task_type = excluded.task_type,
        success_rate = excluded.success_rate,
        confidence = excluded.confidence,
        payload = excluded.payload,
        updated_at = CURRENT_TIMESTAMP
    `

	for _, p := range patterns {
		payload, err := json.Marshal(p)
		if err != nil {
			return errors.WithFields(
				errors.Wrap(err, errors.PersistenceFailed, "failed to encode pattern"),
				errors.Fields{"pattern_id": p.ID},
			)
		}
		if _, err := tx.ExecContext(ctx, query, p.ID, p.TaskType, p.SuccessRate, p.Confidence, string(payload)); err != nil {
			return errors.WithFields(
				errors.Wrap(err, errors.PersistenceFailed, "failed to store pattern"),
				errors.Fields{"pattern_id": p.ID},
			)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.PersistenceFailed, "failed to commit transaction")
	}

	return nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.Wrap(err, errors.PersistenceFailed, "failed to close database connection")
	}
	return nil
}
