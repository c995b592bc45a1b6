package store

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/env"
)

// Store wraps the Postgres pool backing the action registry and the
// cached chat task records.
type Store struct {
	db *sql.DB
}

var (
	defaultStore *Store
	defaultOnce  sync.Once
	defaultErr   error
)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenDefault opens the process-wide store from DATABASE_URL. Safe to call
// from multiple packages; the pool and schema migration run once.
func OpenDefault() (*Store, error) {
	defaultOnce.Do(func() {
		dsn, err := env.GetEnvString("DATABASE_URL")
		if err != nil {
			defaultErr = errors.New("DATABASE_URL is not configured")
			return
		}

		db, err := sql.Open("pgx", dsn)
		if err != nil {
			defaultErr = err
			return
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(10 * time.Minute)
		db.SetConnMaxIdleTime(3 * time.Minute)
		if err = db.Ping(); err != nil {
			defaultErr = err
			return
		}

		s := New(db)
		if err = s.migrate(); err != nil {
			defaultErr = err
			return
		}
		defaultStore = s
	})
	return defaultStore, defaultErr
}

// migrate is idempotent; the ALTER statements keep databases created by
// earlier releases in sync with the current column set.
func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL CHECK (type IN ('group', 'chat')),
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			api_url TEXT DEFAULT '',
			api_key TEXT NOT NULL DEFAULT '',
			api_doc_url TEXT NOT NULL DEFAULT '',
			project_id INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`ALTER TABLE actions ADD COLUMN IF NOT EXISTS project_id INTEGER`,
		`CREATE TABLE IF NOT EXISTS chat_tasks (
			id SERIAL PRIMARY KEY,
			chat_id TEXT NOT NULL,
			action_id TEXT NOT NULL,
			action_name TEXT NOT NULL DEFAULT '',
			external_task_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo',
			request_summary TEXT NOT NULL DEFAULT '',
			response TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ,
			UNIQUE(chat_id, external_task_id)
		)`,
		`ALTER TABLE chat_tasks ADD COLUMN IF NOT EXISTS response TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE chat_tasks ADD COLUMN IF NOT EXISTS response_data JSONB`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
