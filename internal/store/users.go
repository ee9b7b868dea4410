package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/model"
)

const userColumns = `id, name, email, token, token_hash, default_domain, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	u := &model.User{}
	var token, tokenHash sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &token, &tokenHash, &u.DefaultDomain, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Token = token.String
	u.TokenHash = tokenHash.String
	return u, nil
}

// CreateUser inserts a new user. The caller supplies either a plaintext
// legacy token or a token hash.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt

	query := `INSERT INTO users (id, name, email, token, token_hash, default_domain, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Name, u.Email, u.Token, u.TokenHash,
		u.DefaultDomain, u.CreatedAt, u.UpdatedAt)
	return err
}

// GetUserByTokenHash looks a user up by the keyed hash of its bearer token.
func (s *Store) GetUserByTokenHash(ctx context.Context, hash string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE token_hash = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, hash))
}

// GetUserByLegacyToken looks a user up by a stored plaintext token. Only
// rows that have not yet been migrated to hashed form match.
func (s *Store) GetUserByLegacyToken(ctx context.Context, token string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE token = $1 AND token_hash IS NULL`
	return scanUser(s.db.QueryRowContext(ctx, query, token))
}

// MigrateUserToken replaces a legacy plaintext token with its hash and
// clears the plaintext column so later requests authenticate by hash only.
func (s *Store) MigrateUserToken(ctx context.Context, userID uuid.UUID, hash string) error {
	query := `UPDATE users SET token = NULL, token_hash = $2, updated_at = NOW() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, userID, hash)
	return err
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}
