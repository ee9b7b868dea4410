package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/model"
)

// UpsertRecipient inserts or replaces an allow-list entry keyed by
// (domain, form_key, name). An empty form key makes the entry domain-wide.
func (s *Store) UpsertRecipient(ctx context.Context, r *model.Recipient) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	query := `INSERT INTO recipients (id, domain_id, form_key, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (domain_id, form_key, name) DO UPDATE SET
		email = EXCLUDED.email, updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, query, r.ID, r.DomainID, r.FormKey, r.Name, r.Email,
		r.CreatedAt, r.UpdatedAt)
	return err
}

// ResolveRecipient maps a short name to an allow-listed address, preferring
// a form-scoped entry over a domain-wide one. Returns "" when the name is
// not on the allow-list.
func (s *Store) ResolveRecipient(ctx context.Context, domainID uuid.UUID, formKey, name string) (string, error) {
	query := `SELECT email FROM recipients
		WHERE domain_id = $1 AND name = $2 AND (form_key = $3 OR form_key = '')
		ORDER BY form_key DESC LIMIT 1`

	var email string
	err := s.db.QueryRowContext(ctx, query, domainID, name, formKey).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return email, nil
}

// ListRecipients returns the allow-list for a domain.
func (s *Store) ListRecipients(ctx context.Context, domainID uuid.UUID) ([]*model.Recipient, error) {
	query := `SELECT id, domain_id, form_key, name, email, created_at, updated_at
		FROM recipients WHERE domain_id = $1 ORDER BY form_key, name`

	rows, err := s.db.QueryContext(ctx, query, domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []*model.Recipient
	for rows.Next() {
		r := &model.Recipient{}
		if err := rows.Scan(&r.ID, &r.DomainID, &r.FormKey, &r.Name, &r.Email, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}
