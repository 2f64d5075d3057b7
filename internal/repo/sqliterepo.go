package repo

import (
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

// SQLiteRepository is a concrete, optional OperationRepository backed
// by modernc.org/sqlite, adapted from the teacher's DBManager: a
// single serializing mutex guards the one *sql.DB handle (sqlite
// tolerates one writer at a time), and the schema is created eagerly
// the way NewDBManager creates its tables.
type SQLiteRepository struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteRepository opens (and initializes, if empty) a sqlite
// database at path for storing Operation history.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening operations db")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS operations (
		trace_id TEXT NOT NULL PRIMARY KEY,
		status TEXT NOT NULL,
		message TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		logs BLOB
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating operations table")
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Add(op *model.Operation) error {
	return r.UpdateOrAdd(op)
}

func (r *SQLiteRepository) UpdateOrAdd(op *model.Operation) error {
	logs, err := json.Marshal(op.Logs(""))
	if err != nil {
		return errors.Wrap(err, "marshalling operation logs")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.db.Exec(`INSERT INTO operations (trace_id, status, message, started_at, ended_at, logs)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(trace_id) DO UPDATE SET
			status=excluded.status, message=excluded.message,
			ended_at=excluded.ended_at, logs=excluded.logs`,
		op.TraceID, string(op.Status), op.Message, op.StartedAt, op.EndedAt, logs)
	if err != nil {
		return errors.Wrapf(err, "persisting operation %s", op.TraceID)
	}
	return nil
}
