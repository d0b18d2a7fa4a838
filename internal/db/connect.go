package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:examprep.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/examprep?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema applies the idempotent DDL for driver.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  subject TEXT NOT NULL,
  topic TEXT NOT NULL,
  subtopic TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL,
  stem TEXT NOT NULL,
  stem_latex TEXT NOT NULL DEFAULT '',
  marks REAL NOT NULL DEFAULT 4,
  negative_marks REAL NOT NULL DEFAULT 1,
  quality_score REAL NOT NULL DEFAULT 0,
  review_status TEXT NOT NULL DEFAULT 'needs_review',
  is_published INTEGER NOT NULL DEFAULT 0,
  fingerprint TEXT NOT NULL UNIQUE,
  diagram_ref TEXT NOT NULL DEFAULT '',
  issues_json TEXT NOT NULL DEFAULT '[]',
  vetted_at INTEGER,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_pool ON questions (is_published, subject, topic, difficulty);

CREATE TABLE IF NOT EXISTS question_options (
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  opt_key TEXT NOT NULL,
  text TEXT NOT NULL,
  text_latex TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (question_id, opt_key)
);

CREATE TABLE IF NOT EXISTS answer_keys (
  question_id TEXT PRIMARY KEY REFERENCES questions(id) ON DELETE CASCADE,
  answer_type TEXT NOT NULL,
  correct_option TEXT NOT NULL DEFAULT '',
  correct_integer INTEGER,
  solution TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS blueprints (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  scope TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  topic TEXT NOT NULL DEFAULT '',
  question_count INTEGER NOT NULL,
  w_easy REAL NOT NULL,
  w_medium REAL NOT NULL,
  w_hard REAL NOT NULL,
  duration_minutes INTEGER NOT NULL DEFAULT 0,
  negative_marking INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS test_instances (
  id TEXT PRIMARY KEY,
  blueprint_id TEXT NOT NULL REFERENCES blueprints(id),
  seed TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS test_instance_questions (
  test_instance_id TEXT NOT NULL REFERENCES test_instances(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  question_id TEXT NOT NULL REFERENCES questions(id),
  snapshot TEXT NOT NULL,
  PRIMARY KEY (test_instance_id, position),
  UNIQUE (test_instance_id, question_id)
);

CREATE TABLE IF NOT EXISTS review_queue (
  id TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  reasons_json TEXT NOT NULL DEFAULT '[]',
  priority INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  notes TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  decided_at INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_review_queue_open ON review_queue (question_id) WHERE status = 'open';
CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue (status, priority, created_at);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  blueprint_id TEXT NOT NULL,
  blueprint_name TEXT NOT NULL,
  test_instance_id TEXT NOT NULL,
  score REAL NOT NULL,
  max_score REAL NOT NULL,
  percentile REAL NOT NULL,
  correct INTEGER NOT NULL,
  attempted INTEGER NOT NULL,
  total INTEGER NOT NULL,
  accuracy REAL NOT NULL,
  elapsed_seconds INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempts (user_id, created_at);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- e.g., ReviewDecided
  key TEXT NOT NULL,                         -- natural key: question/instance/attempt id
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  subject TEXT NOT NULL,
  topic TEXT NOT NULL,
  subtopic TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL,
  stem TEXT NOT NULL,
  stem_latex TEXT NOT NULL DEFAULT '',
  marks DOUBLE PRECISION NOT NULL DEFAULT 4,
  negative_marks DOUBLE PRECISION NOT NULL DEFAULT 1,
  quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  review_status TEXT NOT NULL DEFAULT 'needs_review',
  is_published BOOLEAN NOT NULL DEFAULT FALSE,
  fingerprint TEXT NOT NULL UNIQUE,
  diagram_ref TEXT NOT NULL DEFAULT '',
  issues_json TEXT NOT NULL DEFAULT '[]',
  vetted_at BIGINT,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_pool ON questions (is_published, subject, topic, difficulty);

CREATE TABLE IF NOT EXISTS question_options (
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  opt_key TEXT NOT NULL,
  text TEXT NOT NULL,
  text_latex TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (question_id, opt_key)
);

CREATE TABLE IF NOT EXISTS answer_keys (
  question_id TEXT PRIMARY KEY REFERENCES questions(id) ON DELETE CASCADE,
  answer_type TEXT NOT NULL,
  correct_option TEXT NOT NULL DEFAULT '',
  correct_integer BIGINT,
  solution TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS blueprints (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  scope TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  topic TEXT NOT NULL DEFAULT '',
  question_count INTEGER NOT NULL,
  w_easy DOUBLE PRECISION NOT NULL,
  w_medium DOUBLE PRECISION NOT NULL,
  w_hard DOUBLE PRECISION NOT NULL,
  duration_minutes INTEGER NOT NULL DEFAULT 0,
  negative_marking BOOLEAN NOT NULL DEFAULT TRUE,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS test_instances (
  id TEXT PRIMARY KEY,
  blueprint_id TEXT NOT NULL REFERENCES blueprints(id),
  seed TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS test_instance_questions (
  test_instance_id TEXT NOT NULL REFERENCES test_instances(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  question_id TEXT NOT NULL REFERENCES questions(id),
  snapshot TEXT NOT NULL,
  PRIMARY KEY (test_instance_id, position),
  UNIQUE (test_instance_id, question_id)
);

CREATE TABLE IF NOT EXISTS review_queue (
  id TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  reasons_json TEXT NOT NULL DEFAULT '[]',
  priority INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  notes TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  decided_at BIGINT
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_review_queue_open ON review_queue (question_id) WHERE status = 'open';
CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue (status, priority, created_at);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  blueprint_id TEXT NOT NULL,
  blueprint_name TEXT NOT NULL,
  test_instance_id TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL,
  max_score DOUBLE PRECISION NOT NULL,
  percentile DOUBLE PRECISION NOT NULL,
  correct INTEGER NOT NULL,
  attempted INTEGER NOT NULL,
  total INTEGER NOT NULL,
  accuracy DOUBLE PRECISION NOT NULL,
  elapsed_seconds INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempts (user_id, created_at);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
