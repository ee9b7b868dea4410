package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brightsend/mailform/internal/auth"
	"github.com/brightsend/mailform/internal/mailer"
)

type messageRequest struct {
	Name   string          `json:"name"`
	Domain string          `json:"domain"`
	Locale string          `json:"locale"`
	To     string          `json:"to"`
	Vars   json.RawMessage `json:"vars"`
}

// SendMessage renders a registered template and sends it to each listed
// recipient. One malformed address fails the whole request so a typo
// never causes a partial send.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	recipients, invalid := mailer.ValidateRecipients(req.To)
	if len(invalid) > 0 {
		respondError(w, http.StatusBadRequest, "invalid recipients: "+strings.Join(invalid, ", "))
		return
	}
	if len(recipients) == 0 {
		respondError(w, http.StatusBadRequest, "to is required")
		return
	}

	vars, err := decodeVars(req.Vars)
	if err != nil {
		respondError(w, http.StatusBadRequest, "vars must be an object or a JSON-encoded object string")
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

	tpl, err := h.store.ResolveTemplate(r.Context(), domain, req.Name, req.Locale)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(500, err))
		return
	}
	if tpl == nil {
		respondError(w, http.StatusNotFound, "template not found")
		return
	}

	sent, err := h.dispatcher.Dispatch(r.Context(), tpl, domain, recipients, vars, requestMeta(r))
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(500, err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

// decodeVars accepts either a JSON object or a string holding one, for
// clients that double-encode form payloads.
func decodeVars(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}

	var vars map[string]interface{}
	if err := json.Unmarshal(raw, &vars); err == nil {
		return vars, nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(encoded), &vars); err != nil {
		return nil, err
	}
	return vars, nil
}
