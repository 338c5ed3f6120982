// ABOUTME: SQLite-backed access token store using modernc.org/sqlite
// ABOUTME: Provides token create/validate/revoke with automatic schema creation

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// AccessToken is an opaque bearer credential issued to an MCP client.
type AccessToken struct {
	Token       string
	Description string
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// TokenStore persists access tokens in SQLite.
type TokenStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTokenStore opens (or creates) the token database at the given path.
// Parent directories are created if needed.
func NewTokenStore(path string) (*TokenStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &TokenStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("token store initialized", "path", path)
	return s, nil
}

func (s *TokenStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS access_tokens (
			token TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			revoked_at TIMESTAMP
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Create mints a new random token and stores it.
func (s *TokenStore) Create(ctx context.Context, description string) (*AccessToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	token := hex.EncodeToString(raw)
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_tokens (token, description, created_at) VALUES (?, ?, ?)`,
		token, description, now)
	if err != nil {
		return nil, fmt.Errorf("inserting token: %w", err)
	}

	s.logger.Info("access token created", "description", description)
	return &AccessToken{
		Token:       token,
		Description: description,
		CreatedAt:   now,
	}, nil
}

// Validate reports whether the token exists and has not been revoked.
func (s *TokenStore) Validate(token string) (bool, error) {
	var revokedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT revoked_at FROM access_tokens WHERE token = ?`,
		token).Scan(&revokedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying token: %w", err)
	}
	return !revokedAt.Valid, nil
}

// Revoke marks the token as revoked. Revoking an already-revoked or
// unknown token returns an error.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE access_tokens SET revoked_at = ? WHERE token = ? AND revoked_at IS NULL`,
		time.Now().UTC(), token)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking revoke result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("token not found or already revoked")
	}
	s.logger.Info("access token revoked")
	return nil
}

// List returns all tokens, newest first.
func (s *TokenStore) List(ctx context.Context) ([]*AccessToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, description, created_at, revoked_at
		 FROM access_tokens ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*AccessToken
	for rows.Next() {
		var t AccessToken
		var revokedAt sql.NullTime
		if err := rows.Scan(&t.Token, &t.Description, &t.CreatedAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		if revokedAt.Valid {
			t.RevokedAt = &revokedAt.Time
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

// Close closes the underlying database.
func (s *TokenStore) Close() error {
	return s.db.Close()
}
