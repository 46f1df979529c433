package userstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

//go:embed schema.sql
var schemaSQL string

// ErrInvalidUser is returned by Create for a record without a username or
// password hash.
var ErrInvalidUser = errors.New("user requires username and password hash")

// Store is a SQLite-backed [tokengate.UserProvider].
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at dsn and applies the
// schema. dsn is any modernc.org/sqlite data source, e.g. "file:users.db"
// or "file::memory:".
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps in-memory databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetUserByUsername implements [tokengate.UserProvider].
func (s *Store) GetUserByUsername(ctx context.Context, username string) (tokengate.UserRecord, error) {
	var (
		rec   tokengate.UserRecord
		roles string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, password_hash, roles FROM users WHERE username = ?`,
		username,
	).Scan(&rec.UserID, &rec.Username, &rec.DisplayName, &rec.PasswordHash, &roles)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tokengate.UserRecord{}, tokengate.ErrUserNotFound
		}
		return tokengate.UserRecord{}, fmt.Errorf("failed to query user: %w", err)
	}

	if err := json.Unmarshal([]byte(roles), &rec.Roles); err != nil {
		return tokengate.UserRecord{}, fmt.Errorf("failed to decode roles of %q: %w", username, err)
	}
	return rec, nil
}

// Create inserts rec and returns it with its id filled in. An empty
// UserID gets a random UUID. A taken username or id returns
// [tokengate.ErrUserExists].
func (s *Store) Create(ctx context.Context, rec tokengate.UserRecord) (tokengate.UserRecord, error) {
	rec.Username = strings.TrimSpace(rec.Username)
	if rec.Username == "" || rec.PasswordHash == "" {
		return tokengate.UserRecord{}, ErrInvalidUser
	}
	if rec.UserID == "" {
		rec.UserID = uuid.NewString()
	}
	if rec.Roles == nil {
		rec.Roles = []string{}
	}

	roles, err := json.Marshal(rec.Roles)
	if err != nil {
		return tokengate.UserRecord{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, password_hash, roles, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		rec.UserID, rec.Username, rec.DisplayName, rec.PasswordHash, string(roles), s.now().Unix(),
	)
	if err != nil {
		return tokengate.UserRecord{}, fmt.Errorf("failed to insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return tokengate.UserRecord{}, fmt.Errorf("failed to insert user: %w", err)
	}
	if n == 0 {
		return tokengate.UserRecord{}, tokengate.ErrUserExists
	}
	return rec, nil
}

// Count returns the number of stored users.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
