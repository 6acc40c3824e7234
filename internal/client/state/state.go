// Package state opens the client's local SQLite database and exposes its
// repositories.
package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/filevault/internal/client/migrations"
	"github.com/dmitrijs2005/filevault/internal/client/repositories/metadata"
)

type State struct {
	db       *sql.DB
	Metadata metadata.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the state database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*State, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases consistent
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &State{db: db, Metadata: metadata.NewSQLiteRepository(db)}, nil
}

func (s *State) Close() error {
	return s.db.Close()
}
