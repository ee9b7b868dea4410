package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/brightsend/mailform/internal/auth"
	"github.com/brightsend/mailform/internal/model"
	"github.com/brightsend/mailform/internal/pkg/logger"
)

type templateRequest struct {
	Name    string   `json:"name"`
	Domain  string   `json:"domain"`
	Locale  string   `json:"locale"`
	Subject string   `json:"subject"`
	Sender  string   `json:"sender"`
	Body    string   `json:"body"`
	Assets  []string `json:"assets"`
}

// UpsertTemplate registers or replaces a template keyed by
// (user, domain, locale, name).
func (h *Handlers) UpsertTemplate(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Body == "" {
		respondError(w, http.StatusBadRequest, "body is required")
		return
	}

	domain, err := h.resolveDomain(r.Context(), user, req.Domain)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(500, err))
		return
	}
	if domain == nil {
		respondError(w, http.StatusBadRequest, "unknown domain")
		return
	}

	locale := req.Locale
	if locale == "" {
		locale = domain.Locale
	}

	tpl := &model.Template{
		UserID:   user.ID,
		DomainID: domain.ID,
		Domain:   domain.Name,
		Name:     req.Name,
		Locale:   locale,
		Subject:  req.Subject,
		Sender:   req.Sender,
		Body:     req.Body,
		Assets:   model.StringList(req.Assets),
	}
	if err := h.store.UpsertTemplate(r.Context(), tpl); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, safeErrorMessage(400, err))
		return
	}

	// Keep a filesystem copy next to the domain's assets. Losing it only
	// costs debuggability, so failure is logged and the request succeeds.
	if err := h.assets.WriteTemplate(domain.Name, tpl.Filename, tpl.Body); err != nil {
		logger.Warn("template file write failed", "domain", domain.Name, "filename", tpl.Filename, "error", err.Error())
	}

	respondJSON(w, http.StatusOK, tpl)
}

// resolveDomain finds the named domain for the user, or the user's
// default domain when name is empty. A nil result means no such domain.
func (h *Handlers) resolveDomain(ctx context.Context, user *model.User, name string) (*model.Domain, error) {
	if name != "" {
		return h.store.GetDomainByName(ctx, user.ID, name)
	}
	return h.store.GetDefaultDomain(ctx, user.ID)
}
