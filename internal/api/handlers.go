// Package api exposes the HTTP surface: transactional sends, form
// submissions, asset upload and serving.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/assets"
	"github.com/brightsend/mailform/internal/form"
	"github.com/brightsend/mailform/internal/mailer"
	"github.com/brightsend/mailform/internal/model"
)

// Store is the persistence surface the handlers use. *store.Store
// satisfies it; tests supply fakes.
type Store interface {
	GetDomainByName(ctx context.Context, userID uuid.UUID, name string) (*model.Domain, error)
	GetDefaultDomain(ctx context.Context, userID uuid.UUID) (*model.Domain, error)
	ResolveTemplate(ctx context.Context, domain *model.Domain, name, locale string) (*model.Template, error)
	UpsertTemplate(ctx context.Context, t *model.Template) error
	UpsertForm(ctx context.Context, f *model.Form) error
	UpsertRecipient(ctx context.Context, r *model.Recipient) error
}

// Handlers holds the request handlers and their dependencies.
type Handlers struct {
	store      Store
	assets     *assets.Store
	dispatcher *mailer.Dispatcher
	forms      *form.Service
}

// NewHandlers creates the handler set.
func NewHandlers(store Store, assetStore *assets.Store, dispatcher *mailer.Dispatcher, forms *form.Service) *Handlers {
	return &Handlers{
		store:      store,
		assets:     assetStore,
		dispatcher: dispatcher,
		forms:      forms,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// requestMeta extracts the template-visible request metadata.
func requestMeta(r *http.Request) mailer.RequestMeta {
	return mailer.RequestMeta{
		RemoteIP:   r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		ReceivedAt: time.Now().UTC(),
	}
}
