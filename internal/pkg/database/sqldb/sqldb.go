// Package sqldb keeps named snapshots and the alarm log in a SQL database.
// Postgres (pgx or lib/pq) and MySQL are supported.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/ohowland/powersim/internal/pkg/snapshot"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

var drivers = map[string]bool{"pgx": true, "postgres": true, "mysql": true}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		name VARCHAR(128) PRIMARY KEY,
		tick BIGINT NOT NULL,
		body TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alarms (
		tick BIGINT NOT NULL,
		clock_ms BIGINT NOT NULL,
		kind VARCHAR(64) NOT NULL,
		component_id VARCHAR(128) NOT NULL,
		label VARCHAR(256) NOT NULL,
		detail VARCHAR(256) NOT NULL
	)`,
}

// Open connects and creates the tables if needed.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if !drivers[driver] {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return db, nil
}

// Repository is a snapshot.Store backed by the snapshots table.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type snapshotRow struct {
	Name string `db:"name"`
	Tick int64  `db:"tick"`
	Body string `db:"body"`
}

func (r *Repository) Save(ctx context.Context, name string, d snapshot.Document) error {
	body, err := snapshot.Encode(d)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM snapshots WHERE name = ?`), name); err != nil {
		return fmt.Errorf("save snapshot %s: %w", name, err)
	}
	row := snapshotRow{Name: name, Tick: int64(d.Tick), Body: string(body)}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO snapshots (name, tick, body) VALUES (:name, :tick, :body)`, row); err != nil {
		return fmt.Errorf("save snapshot %s: %w", name, err)
	}
	return tx.Commit()
}

func (r *Repository) Load(ctx context.Context, name string) (snapshot.Document, error) {
	var row snapshotRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT name, tick, body FROM snapshots WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Document{}, fmt.Errorf("%w: %s", snapshot.ErrNotFound, name)
	}
	if err != nil {
		return snapshot.Document{}, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	return snapshot.Decode([]byte(row.Body))
}

// List returns the saved snapshot names, newest tick first.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names, `SELECT name FROM snapshots ORDER BY tick DESC, name`)
	return names, err
}
