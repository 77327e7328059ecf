// Package persistence provides SQLite-backed colony configuration and run
// history.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/forage/config"
)

// DB wraps a SQLite connection. It implements config.Store.
type DB struct {
	conn *sqlx.DB
}

var _ config.Store = (*DB)(nil)

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS colony_config (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		colony TEXT NOT NULL,
		seed INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		emptied INTEGER NOT NULL,
		filled INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_colony ON runs(colony);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Get returns the configuration blob stored under name, or nil when there
// is none.
func (db *DB) Get(ctx context.Context, name string) ([]byte, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM colony_config WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get config %q: %w", name, err)
	}
	return []byte(value), nil
}

// Set stores blob under name. A nil blob deletes the entry.
func (db *DB) Set(ctx context.Context, name string, blob []byte) error {
	if blob == nil {
		return db.Delete(ctx, name)
	}
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO colony_config (name, value, updated_at) VALUES (?, ?, ?)",
		name, string(blob), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("set config %q: %w", name, err)
	}
	return nil
}

// Delete removes the configuration stored under name.
func (db *DB) Delete(ctx context.Context, name string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM colony_config WHERE name = ?", name)
	return err
}

// Names lists the colonies with a stored configuration.
func (db *DB) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := db.conn.SelectContext(ctx, &names, "SELECT name FROM colony_config ORDER BY name")
	return names, err
}

// RunSummary is one finished simulation run of a colony.
type RunSummary struct {
	ID         string    `db:"id"`
	Colony     string    `db:"colony"`
	Seed       int64     `db:"seed"`
	Ticks      int64     `db:"ticks"`
	Emptied    uint64    `db:"emptied"`
	Filled     uint64    `db:"filled"`
	StartedAt  time.Time `db:"-"`
	FinishedAt time.Time `db:"-"`
}

type runRow struct {
	ID         string `db:"id"`
	Colony     string `db:"colony"`
	Seed       int64  `db:"seed"`
	Ticks      int64  `db:"ticks"`
	Emptied    int64  `db:"emptied"`
	Filled     int64  `db:"filled"`
	StartedAt  int64  `db:"started_at"`
	FinishedAt int64  `db:"finished_at"`
}

// RecordRun appends a run summary and returns its ID. A new ID is assigned
// when r.ID is empty.
func (db *DB) RecordRun(ctx context.Context, r RunSummary) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := db.conn.NamedExecContext(ctx, `INSERT INTO runs
		(id, colony, seed, ticks, emptied, filled, started_at, finished_at)
		VALUES (:id, :colony, :seed, :ticks, :emptied, :filled, :started_at, :finished_at)`,
		runRow{
			ID:         r.ID,
			Colony:     r.Colony,
			Seed:       r.Seed,
			Ticks:      r.Ticks,
			Emptied:    int64(r.Emptied),
			Filled:     int64(r.Filled),
			StartedAt:  r.StartedAt.UnixMilli(),
			FinishedAt: r.FinishedAt.UnixMilli(),
		},
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return r.ID, nil
}

// Runs returns the recorded runs of a colony, newest first. An empty colony
// name returns every run.
func (db *DB) Runs(ctx context.Context, colony string) ([]RunSummary, error) {
	var rows []runRow
	var err error
	if colony == "" {
		err = db.conn.SelectContext(ctx, &rows,
			"SELECT * FROM runs ORDER BY finished_at DESC, id")
	} else {
		err = db.conn.SelectContext(ctx, &rows,
			"SELECT * FROM runs WHERE colony = ? ORDER BY finished_at DESC, id", colony)
	}
	if err != nil {
		return nil, err
	}

	out := make([]RunSummary, len(rows))
	for i, row := range rows {
		out[i] = RunSummary{
			ID:         row.ID,
			Colony:     row.Colony,
			Seed:       row.Seed,
			Ticks:      row.Ticks,
			Emptied:    uint64(row.Emptied),
			Filled:     uint64(row.Filled),
			StartedAt:  time.UnixMilli(row.StartedAt),
			FinishedAt: time.UnixMilli(row.FinishedAt),
		}
	}
	return out, nil
}
