package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/typing-exam/internal/repository/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle and implements domain.Database.
type DB struct {
	SqlDB *sql.DB
}

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// A single connection serializes writers, which also makes the
	// check-and-insert paths below race free.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db}, nil
}

// Migrate applies all pending schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, d.SqlDB)
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.SqlDB.Close()
}

func (d *DB) Admins() *AdminRepository          { return NewAdminRepository(d) }
func (d *DB) Students() *StudentRepository      { return NewStudentRepository(d) }
func (d *DB) Contents() *ContentRepository      { return NewContentRepository(d) }
func (d *DB) Settings() *SettingsRepository     { return NewSettingsRepository(d) }
func (d *DB) Sessions() *SessionTokenRepository { return NewSessionTokenRepository(d) }
func (d *DB) Attempts() *AttemptRepository      { return NewAttemptRepository(d) }
