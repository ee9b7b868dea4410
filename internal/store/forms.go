package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/model"
)

const formColumns = `f.id, f.user_id, f.domain_id, d.name, f.locale, f.idname, f.form_key,
	f.sender, f.recipient, f.subject, f.body, f.secret, f.filename, f.assets, f.created_at, f.updated_at`

func scanForm(row interface{ Scan(...interface{}) error }) (*model.Form, error) {
	f := &model.Form{}
	err := row.Scan(&f.ID, &f.UserID, &f.DomainID, &f.Domain, &f.Locale, &f.IDName, &f.FormKey,
		&f.Sender, &f.Recipient, &f.Subject, &f.Body, &f.Secret, &f.Filename, &f.Assets,
		&f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpsertForm inserts or replaces a form configuration keyed by
// (user, domain, locale, idname). model.PrepareForm assigns the opaque form
// key on first insert.
func (s *Store) UpsertForm(ctx context.Context, f *model.Form) error {
	if err := model.PrepareForm(f); err != nil {
		return err
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	// The form key is stable across upserts so published HTML forms keep
	// working after a template update.
	query := `INSERT INTO forms (id, user_id, domain_id, locale, idname, form_key, sender,
		recipient, subject, body, secret, filename, assets, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, domain_id, locale, idname) DO UPDATE SET
		sender = EXCLUDED.sender, recipient = EXCLUDED.recipient, subject = EXCLUDED.subject,
		body = EXCLUDED.body, secret = EXCLUDED.secret, filename = EXCLUDED.filename,
		assets = EXCLUDED.assets, updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, query, f.ID, f.UserID, f.DomainID, f.Locale, f.IDName,
		f.FormKey, f.Sender, f.Recipient, f.Subject, f.Body, f.Secret, f.Filename, f.Assets,
		f.CreatedAt, f.UpdatedAt)
	return err
}

// GetFormByKey retrieves a form by its opaque public key.
func (s *Store) GetFormByKey(ctx context.Context, formKey string) (*model.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms f
		JOIN domains d ON d.id = f.domain_id
		WHERE f.form_key = $1`
	return scanForm(s.db.QueryRowContext(ctx, query, formKey))
}

// GetForm retrieves a form by its natural key.
func (s *Store) GetForm(ctx context.Context, userID, domainID uuid.UUID, locale, idname string) (*model.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms f
		JOIN domains d ON d.id = f.domain_id
		WHERE f.user_id = $1 AND f.domain_id = $2 AND f.locale = $3 AND f.idname = $4`
	return scanForm(s.db.QueryRowContext(ctx, query, userID, domainID, locale, idname))
}
