package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/model"
)

const templateColumns = `t.id, t.user_id, t.domain_id, d.name, t.name, t.locale, t.subject, t.sender,
	t.body, t.slug, t.filename, t.assets, t.created_at, t.updated_at`

func scanTemplate(row interface{ Scan(...interface{}) error }) (*model.Template, error) {
	t := &model.Template{}
	err := row.Scan(&t.ID, &t.UserID, &t.DomainID, &t.Domain, &t.Name, &t.Locale, &t.Subject,
		&t.Sender, &t.Body, &t.Slug, &t.Filename, &t.Assets, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpsertTemplate inserts or replaces a template keyed by
// (user, domain, locale, name). Derived fields are filled by
// model.PrepareTemplate before the write.
func (s *Store) UpsertTemplate(ctx context.Context, t *model.Template) error {
	if err := model.PrepareTemplate(t); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `INSERT INTO templates (id, user_id, domain_id, name, locale, subject, sender, body,
		slug, filename, assets, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, domain_id, locale, name) DO UPDATE SET
		subject = EXCLUDED.subject, sender = EXCLUDED.sender, body = EXCLUDED.body,
		slug = EXCLUDED.slug, filename = EXCLUDED.filename, assets = EXCLUDED.assets,
		updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, query, t.ID, t.UserID, t.DomainID, t.Name, t.Locale,
		t.Subject, t.Sender, t.Body, t.Slug, t.Filename, t.Assets, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) templateByLocale(ctx context.Context, domainID uuid.UUID, name, locale string) (*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates t
		JOIN domains d ON d.id = t.domain_id
		WHERE t.domain_id = $1 AND t.name = $2 AND t.locale = $3`
	return scanTemplate(s.db.QueryRowContext(ctx, query, domainID, name, locale))
}

func (s *Store) templateAnyLocale(ctx context.Context, domainID uuid.UUID, name string) (*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates t
		JOIN domains d ON d.id = t.domain_id
		WHERE t.domain_id = $1 AND t.name = $2 ORDER BY t.created_at LIMIT 1`
	return scanTemplate(s.db.QueryRowContext(ctx, query, domainID, name))
}

// ResolveTemplate looks a template up by name within a domain, applying the
// locale fallback order: exact locale, then the domain's default locale,
// then any locale. First match wins.
func (s *Store) ResolveTemplate(ctx context.Context, domain *model.Domain, name, locale string) (*model.Template, error) {
	if locale != "" {
		t, err := s.templateByLocale(ctx, domain.ID, name, locale)
		if err != nil || t != nil {
			return t, err
		}
	}
	if domain.Locale != "" && domain.Locale != locale {
		t, err := s.templateByLocale(ctx, domain.ID, name, domain.Locale)
		if err != nil || t != nil {
			return t, err
		}
	}
	return s.templateAnyLocale(ctx, domain.ID, name)
}

// ListTemplates returns all templates for a domain, newest first.
func (s *Store) ListTemplates(ctx context.Context, domainID uuid.UUID) ([]*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates t
		JOIN domains d ON d.id = t.domain_id
		WHERE t.domain_id = $1 ORDER BY t.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
