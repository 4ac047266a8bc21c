package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

type Client struct {
	db     *sql.DB
	driver Driver
}

func NewClient(dsn string, maxOpenConns int) (*Client, error) {
	driver := DetectDriver(dsn)

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		fileDSN, path := sqliteDSN(dsn)
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", fileDSN)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Database client initialized", zap.String("driver", driver.String()))

	return &Client{db: db, driver: driver}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Driver() Driver {
	return c.driver
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := sqliteSchema
	if c.driver == DriverPostgres {
		schema = postgresSchema
	}

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

func (c *Client) q(query string) string {
	return rebind(c.driver, query)
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	day TEXT NOT NULL,
	person TEXT NOT NULL,
	task TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_person ON tasks(person);
CREATE INDEX IF NOT EXISTS idx_tasks_day ON tasks(day);

CREATE TABLE IF NOT EXISTS scoring_runs (
	run_id TEXT PRIMARY KEY,
	kr_code TEXT NOT NULL,
	person TEXT NOT NULL,
	rounds INTEGER NOT NULL,
	task_count INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE (kr_code, person)
);

CREATE TABLE IF NOT EXISTS task_scores (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	kr_code TEXT NOT NULL,
	score INTEGER NOT NULL,
	person TEXT NOT NULL,
	UNIQUE (task_id, kr_code, person),
	FOREIGN KEY (task_id) REFERENCES tasks(id)
);
CREATE INDEX IF NOT EXISTS idx_scores_kr_person ON task_scores(kr_code, person);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	day VARCHAR(10) NOT NULL,
	person VARCHAR(50) NOT NULL,
	task TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_person ON tasks(person);
CREATE INDEX IF NOT EXISTS idx_tasks_day ON tasks(day);

CREATE TABLE IF NOT EXISTS scoring_runs (
	run_id UUID PRIMARY KEY,
	kr_code VARCHAR(64) NOT NULL,
	person VARCHAR(50) NOT NULL,
	rounds INTEGER NOT NULL,
	task_count INTEGER NOT NULL,
	created_at BIGINT NOT NULL,
	UNIQUE (kr_code, person)
);

CREATE TABLE IF NOT EXISTS task_scores (
	id BIGSERIAL PRIMARY KEY,
	task_id BIGINT NOT NULL REFERENCES tasks(id),
	kr_code VARCHAR(64) NOT NULL,
	score INTEGER NOT NULL,
	person VARCHAR(50) NOT NULL,
	UNIQUE (task_id, kr_code, person)
);
CREATE INDEX IF NOT EXISTS idx_scores_kr_person ON task_scores(kr_code, person);
`
