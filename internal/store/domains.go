package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/model"
)

const domainColumns = `id, user_id, name, default_sender, locale, is_default, created_at, updated_at`

func scanDomain(row interface{ Scan(...interface{}) error }) (*model.Domain, error) {
	d := &model.Domain{}
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.DefaultSender, &d.Locale, &d.IsDefault, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDomain inserts a new domain after validating its name.
func (s *Store) CreateDomain(ctx context.Context, d *model.Domain) error {
	if !model.ValidDomainName(d.Name) {
		return fmt.Errorf("invalid domain name %q", d.Name)
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt

	query := `INSERT INTO domains (id, user_id, name, default_sender, locale, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query, d.ID, d.UserID, d.Name, d.DefaultSender,
		d.Locale, d.IsDefault, d.CreatedAt, d.UpdatedAt)
	return err
}

// GetDomainByName retrieves a domain owned by the given user.
func (s *Store) GetDomainByName(ctx context.Context, userID uuid.UUID, name string) (*model.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE user_id = $1 AND name = $2`
	return scanDomain(s.db.QueryRowContext(ctx, query, userID, name))
}

// GetAnyDomainByName retrieves a domain regardless of owner. Used by the
// public form path, where no authenticated user exists.
func (s *Store) GetAnyDomainByName(ctx context.Context, name string) (*model.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE name = $1`
	return scanDomain(s.db.QueryRowContext(ctx, query, name))
}

// GetDefaultDomain retrieves the user's default domain, falling back to the
// domain named in users.default_domain.
func (s *Store) GetDefaultDomain(ctx context.Context, userID uuid.UUID) (*model.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE user_id = $1 AND is_default ORDER BY created_at LIMIT 1`
	d, err := scanDomain(s.db.QueryRowContext(ctx, query, userID))
	if err != nil || d != nil {
		return d, err
	}

	query = `SELECT ` + domainColumns + ` FROM domains d WHERE d.user_id = $1
		AND d.name = (SELECT default_domain FROM users WHERE id = $1)`
	return scanDomain(s.db.QueryRowContext(ctx, query, userID))
}
