package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	user_id       TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	scope         TEXT NOT NULL DEFAULT '',
	updated_at    INTEGER NOT NULL
);
`

// SQLiteStore persists credential records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the record for userID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*Record, error) {
	query := `
		SELECT user_id, access_token, refresh_token, scope, updated_at
		FROM credentials
		WHERE user_id = ?
	`

	var rec Record
	var updatedAt int64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.AccessToken,
		&rec.RefreshToken,
		&rec.Scope,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// Put inserts the record, replacing any existing record for the same user.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	query := `
		INSERT INTO credentials (user_id, access_token, refresh_token, scope, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			scope         = excluded.scope,
			updated_at    = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.UserID,
		rec.AccessToken,
		rec.RefreshToken,
		rec.Scope,
		rec.UpdatedAt.Unix(),
	)

	return err
}

// Update applies the non-nil fields of update to the stored record.
func (s *SQLiteStore) Update(ctx context.Context, userID string, update Update, updatedAt time.Time) error {
	set := "updated_at = ?"
	args := []interface{}{updatedAt.Unix()}

	if update.AccessToken != nil {
		set += ", access_token = ?"
		args = append(args, *update.AccessToken)
	}
	if update.RefreshToken != nil {
		set += ", refresh_token = ?"
		args = append(args, *update.RefreshToken)
	}
	args = append(args, userID)

	result, err := s.db.ExecContext(ctx, "UPDATE credentials SET "+set+" WHERE user_id = ?", args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
