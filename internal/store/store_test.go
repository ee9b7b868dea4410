package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/model"
)

func setupTestDB(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return New(db), mock, func() { db.Close() }
}

func templateRows(tpl *model.Template) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "domain_id", "name", "name", "locale", "subject", "sender",
		"body", "slug", "filename", "assets", "created_at", "updated_at",
	}).AddRow(tpl.ID, tpl.UserID, tpl.DomainID, tpl.Domain, tpl.Name, tpl.Locale, tpl.Subject,
		tpl.Sender, tpl.Body, tpl.Slug, tpl.Filename, []byte(`[]`), tpl.CreatedAt, tpl.UpdatedAt)
}

func testTemplate(domainID uuid.UUID, locale string) *model.Template {
	return &model.Template{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		DomainID:  domainID,
		Domain:    "example.com",
		Name:      "welcome",
		Locale:    locale,
		Subject:   "Welcome",
		Sender:    "no-reply@example.com",
		Body:      "<p>Hello {{ name }}</p>",
		Slug:      "example-com-" + locale + "-welcome",
		Filename:  "example-com-" + locale + "-welcome.liquid",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestResolveTemplateExactLocale(t *testing.T) {
	s, mock, cleanup := setupTestDB(t)
	defer cleanup()

	domain := &model.Domain{ID: uuid.New(), Locale: "en"}
	tpl := testTemplate(domain.ID, "de")

	mock.ExpectQuery(`SELECT .+ FROM templates t.+WHERE t\.domain_id = \$1 AND t\.name = \$2 AND t\.locale = \$3`).
		WithArgs(domain.ID, "welcome", "de").
		WillReturnRows(templateRows(tpl))

	got, err := s.ResolveTemplate(context.Background(), domain, "welcome", "de")
	if err != nil {
		t.Fatalf("ResolveTemplate: %v", err)
	}
	if got == nil || got.Locale != "de" {
		t.Fatalf("got %+v, want locale de", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResolveTemplateFallbackOrder(t *testing.T) {
	s, mock, cleanup := setupTestDB(t)
	defer cleanup()

	domain := &model.Domain{ID: uuid.New(), Locale: "en"}
	tpl := testTemplate(domain.ID, "en")

	emptyRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "user_id", "domain_id", "name", "name", "locale", "subject", "sender",
			"body", "slug", "filename", "assets", "created_at", "updated_at",
		})
	}

	// Exact locale "de" misses.
	mock.ExpectQuery(`AND t\.locale = \$3`).
		WithArgs(domain.ID, "welcome", "de").
		WillReturnRows(emptyRows())
	// Domain default locale "en" hits.
	mock.ExpectQuery(`AND t\.locale = \$3`).
		WithArgs(domain.ID, "welcome", "en").
		WillReturnRows(templateRows(tpl))

	got, err := s.ResolveTemplate(context.Background(), domain, "welcome", "de")
	if err != nil {
		t.Fatalf("ResolveTemplate: %v", err)
	}
	if got == nil || got.Locale != "en" {
		t.Fatalf("got %+v, want domain default locale en", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResolveTemplateAnyLocaleLast(t *testing.T) {
	s, mock, cleanup := setupTestDB(t)
	defer cleanup()

	domain := &model.Domain{ID: uuid.New(), Locale: "en"}
	tpl := testTemplate(domain.ID, "fr")

	emptyRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "user_id", "domain_id", "name", "name", "locale", "subject", "sender",
			"body", "slug", "filename", "assets", "created_at", "updated_at",
		})
	}

	mock.ExpectQuery(`AND t\.locale = \$3`).
		WithArgs(domain.ID, "welcome", "de").
		WillReturnRows(emptyRows())
	mock.ExpectQuery(`AND t\.locale = \$3`).
		WithArgs(domain.ID, "welcome", "en").
		WillReturnRows(emptyRows())
	mock.ExpectQuery(`ORDER BY t\.created_at LIMIT 1`).
		WithArgs(domain.ID, "welcome").
		WillReturnRows(templateRows(tpl))

	got, err := s.ResolveTemplate(context.Background(), domain, "welcome", "de")
	if err != nil {
		t.Fatalf("ResolveTemplate: %v", err)
	}
	if got == nil || got.Locale != "fr" {
		t.Fatalf("got %+v, want any-locale fr", got)
	}
}

func TestResolveTemplateNotFound(t *testing.T) {
	s, mock, cleanup := setupTestDB(t)
	defer cleanup()

	domain := &model.Domain{ID: uuid.New(), Locale: ""}

	emptyRows := sqlmock.NewRows([]string{
		"id", "user_id", "domain_id", "name", "name", "locale", "subject", "sender",
		"body", "slug", "filename", "assets", "created_at", "updated_at",
	})

	// No requested locale, no domain locale: straight to any-locale.
	mock.ExpectQuery(`ORDER BY t\.created_at LIMIT 1`).
		WithArgs(domain.ID, "missing").
		WillReturnRows(emptyRows)

	got, err := s.ResolveTemplate(context.Background(), domain, "missing", "")
	if err != nil {
		t.Fatalf("ResolveTemplate: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestUpsertTemplateRunsPrepare(t *testing.T) {
	s, mock, cleanup := setupTestDB(t)
	defer cleanup()

	tpl := &model.Template{
		UserID:   uuid.New(),
		DomainID: uuid.New(),
		Domain:   "example.com",
		Name:     "welcome",
		Locale:   "en",
		Body:     "<p>hi</p>",
	}

	mock.ExpectExec(`INSERT INTO templates`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpsertTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("UpsertTemplate: %v", err)
	}
	if tpl.Slug != "example-com-en-welcome" {
		t.Errorf("slug not derived: %q", tpl.Slug)
	}
	if tpl.ID == uuid.Nil {
		t.Error("id not assigned")
	}
}

func TestUpsertTemplateRejectsTraversalFilename(t *testing.T) {
	s, _, cleanup := setupTestDB(t)
	defer cleanup()

	tpl := &model.Template{
		UserID:   uuid.New(),
		DomainID: uuid.New(),
		Domain:   "example.com",
		Name:     "welcome",
		Locale:   "en",
		Filename: "../../../etc/passwd",
	}

	if err := s.UpsertTemplate(context.Background(), tpl); err == nil {
		t.Error("UpsertTemplate accepted traversal filename")
	}
}

func TestResolveRecipientPrefersFormScope(t *testing.T) {
	s, mock, cleanup := setupTestDB(t)
	defer cleanup()

	domainID := uuid.New()
	mock.ExpectQuery(`SELECT email FROM recipients`).
		WithArgs(domainID, "sales", "key123").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("sales@example.com"))

	email, err := s.ResolveRecipient(context.Background(), domainID, "key123", "sales")
	if err != nil {
		t.Fatalf("ResolveRecipient: %v", err)
	}
	if email != "sales@example.com" {
		t.Errorf("email = %q", email)
	}
}

func TestResolveRecipientMissReturnsEmpty(t *testing.T) {
	s, mock, cleanup := setupTestDB(t)
	defer cleanup()

	domainID := uuid.New()
	mock.ExpectQuery(`SELECT email FROM recipients`).
		WithArgs(domainID, "nobody", "key123").
		WillReturnRows(sqlmock.NewRows([]string{"email"}))

	email, err := s.ResolveRecipient(context.Background(), domainID, "key123", "nobody")
	if err != nil {
		t.Fatalf("ResolveRecipient: %v", err)
	}
	if email != "" {
		t.Errorf("email = %q, want empty", email)
	}
}

func TestMigrateUserToken(t *testing.T) {
	s, mock, cleanup := setupTestDB(t)
	defer cleanup()

	userID := uuid.New()
	mock.ExpectExec(`UPDATE users SET token = NULL, token_hash = \$2`).
		WithArgs(userID, "newhash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.MigrateUserToken(context.Background(), userID, "newhash"); err != nil {
		t.Fatalf("MigrateUserToken: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
