package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StringList is a helper type for text[]-ish columns stored as JSONB.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(b, l)
}

// User is an authenticated API client, created by import or admin tooling.
// Token holds a legacy plaintext credential until the first successful
// authentication migrates it into TokenHash.
type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Token         string    `json:"-"`
	TokenHash     string    `json:"-"`
	DefaultDomain string    `json:"default_domain"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Domain is the tenant-scoping unit; every template, form, and recipient
// belongs to exactly one domain.
type Domain struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Name          string    `json:"name"`
	DefaultSender string    `json:"default_sender"`
	Locale        string    `json:"locale"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Template is a reusable transactional message, unique per
// (user, domain, locale, name).
type Template struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	DomainID  uuid.UUID  `json:"domain_id"`
	Domain    string     `json:"domain"`
	Name      string     `json:"name"`
	Locale    string     `json:"locale"`
	Subject   string     `json:"subject"`
	Sender    string     `json:"sender"`
	Body      string     `json:"body"`
	Slug      string     `json:"slug"`
	Filename  string     `json:"filename"`
	Assets    StringList `json:"assets"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Form is a public form configuration, selected at submission time by its
// opaque FormKey. Unique per (user, domain, locale, idname).
type Form struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	DomainID  uuid.UUID  `json:"domain_id"`
	Domain    string     `json:"domain"`
	Locale    string     `json:"locale"`
	IDName    string     `json:"idname"`
	FormKey   string     `json:"form_key"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Secret    string     `json:"-"`
	Filename  string     `json:"filename"`
	Assets    StringList `json:"assets"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Recipient is a domain-scoped allow-list entry mapping a short name to an
// email address. An empty FormKey means the entry applies domain-wide.
type Recipient struct {
	ID        uuid.UUID `json:"id"`
	DomainID  uuid.UUID `json:"domain_id"`
	FormKey   string    `json:"form_key"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
