package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/brightsend/mailform/internal/auth"
	"github.com/brightsend/mailform/internal/form"
	"github.com/brightsend/mailform/internal/model"
)

const maxFormBody = 1 << 20 // 1 MiB; form posts are small

// FormMessage handles the public form-to-mail endpoint. It accepts
// urlencoded, multipart, and JSON bodies and never requires auth; the
// rate limiter upstream throttles abuse.
func (h *Handlers) FormMessage(w http.ResponseWriter, r *http.Request) {
	fields, err := submissionFields(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := form.ParseSubmission(fields)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sent, err := h.forms.Submit(r.Context(), sub, requestMeta(r))
	switch {
	case errors.Is(err, form.ErrFormNotFound):
		respondError(w, http.StatusNotFound, "form not found")
	case errors.Is(err, form.ErrBadSubmission):
		respondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(500, err))
	default:
		respondJSON(w, http.StatusOK, map[string]int{"sent": sent})
	}
}

// submissionFields normalizes the three accepted body encodings into
// name -> values pairs.
func submissionFields(r *http.Request) (map[string][]string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBody)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var raw map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON body")
		}
		fields := make(map[string][]string, len(raw))
		for name, v := range raw {
			switch vv := v.(type) {
			case []interface{}:
				for _, item := range vv {
					fields[name] = append(fields[name], fmt.Sprint(item))
				}
			case nil:
				fields[name] = []string{""}
			default:
				fields[name] = []string{fmt.Sprint(vv)}
			}
		}
		return fields, nil
	}

	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormBody); err != nil {
			return nil, fmt.Errorf("invalid multipart body")
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body")
	}
	return r.Form, nil
}

type formRequest struct {
	Domain    string   `json:"domain"`
	Locale    string   `json:"locale"`
	IDName    string   `json:"idname"`
	Sender    string   `json:"sender"`
	Recipient string   `json:"recipient"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Assets    []string `json:"assets"`
}

// UpsertForm registers or replaces a form configuration. The opaque
// form key is generated on first insert and stable across updates.
func (h *Handlers) UpsertForm(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req formRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.IDName == "" {
		respondError(w, http.StatusBadRequest, "idname is required")
		return
	}
	if req.Body == "" {
		respondError(w, http.StatusBadRequest, "body is required")
		return
	}
	if req.Recipient != "" {
		if _, err := mail.ParseAddress(req.Recipient); err != nil {
			respondError(w, http.StatusBadRequest, "invalid recipient address")
			return
		}
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

	f := &model.Form{
		UserID:    user.ID,
		DomainID:  domain.ID,
		Domain:    domain.Name,
		Locale:    locale,
		IDName:    req.IDName,
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Body:      req.Body,
		Assets:    model.StringList(req.Assets),
	}
	if err := h.store.UpsertForm(r.Context(), f); err != nil {
		respondSafeError(w, http.StatusBadRequest, err, safeErrorMessage(400, err))
		return
	}

	respondJSON(w, http.StatusOK, f)
}

type recipientRequest struct {
	Domain     string            `json:"domain"`
	FormKey    string            `json:"form_key"`
	Recipients map[string]string `json:"recipients"`
}

// UpsertRecipients adds or updates allow-list entries mapping short
// names to addresses. One invalid address rejects the whole batch.
func (h *Handlers) UpsertRecipients(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req recipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Recipients) == 0 {
		respondError(w, http.StatusBadRequest, "recipients map is required")
		return
	}

	var invalid []string
	for name, email := range req.Recipients {
		if _, err := mail.ParseAddress(email); err != nil {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		respondError(w, http.StatusBadRequest, "invalid recipient addresses for: "+strings.Join(invalid, ", "))
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

	for name, email := range req.Recipients {
		rec := &model.Recipient{
			DomainID: domain.ID,
			FormKey:  req.FormKey,
			Name:     name,
			Email:    email,
		}
		if err := h.store.UpsertRecipient(r.Context(), rec); err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(500, err))
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]int{"updated": len(req.Recipients)})
}
