package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	embedsql "github.com/ldi/tasker/embed/sql"
	"github.com/ldi/tasker/pkg/models"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	Staging          *StagingManager
	onChange         func(ctx context.Context)
	onChangeMu       sync.RWMutex
	onChangeDisabled bool
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx exposes the store operations bound to a single transaction.
type Tx struct {
	exec executor
}

func (db *DB) SetOnChange(fn func(ctx context.Context)) {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChange = fn
}

func (db *DB) DisableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = true
}

func (db *DB) EnableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = false
}

func (db *DB) triggerChange(ctx context.Context) {
	db.onChangeMu.RLock()
	fn := db.onChange
	disabled := db.onChangeDisabled
	db.onChangeMu.RUnlock()

	if fn != nil && !disabled {
		fn(ctx)
	}
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, models.StorageErr("failed to create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, models.StorageErr("failed to open database", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, models.StorageErr("failed to enable WAL mode", err)
	}

	// Foreign keys support
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, models.StorageErr("failed to enable foreign keys", err)
	}

	// SQLite works best with a single writer. It also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)

	return &DB{
		DB:      db,
		Staging: NewStagingManager(),
	}, nil
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return models.StorageErr("migration failed", err)
	}
	return nil
}

func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

// WithTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise. The change hook fires after commit.
//
// fn must only use the Tx it is given: the pool holds a single connection,
// so touching db directly from inside fn blocks forever.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	if err := db.withTx(ctx, fn); err != nil {
		return err
	}
	db.triggerChange(ctx)
	return nil
}

// View runs fn inside one transaction and always rolls back. It gives
// readers a consistent snapshot across several queries.
func (db *DB) View(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.StorageErr("failed to begin transaction", err)
	}
	defer sqlTx.Rollback()

	return fn(&Tx{exec: sqlTx})
}

func (db *DB) withTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.StorageErr("failed to begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{exec: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return models.StorageErr("failed to commit transaction", err)
	}
	return nil
}
