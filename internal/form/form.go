// Package form implements the public form-to-mail dispatch path.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/mailer"
	"github.com/brightsend/mailform/internal/model"
	"github.com/brightsend/mailform/internal/pkg/logger"
)

// Control fields carry the reserved "_mm_" prefix. The set is closed: any
// other "_mm_" field is rejected so future control names cannot be
// squatted by template data.
const (
	ReservedPrefix  = "_mm_"
	FieldFormKey    = "_mm_form_key"
	FieldRecipients = "_mm_recipients"
)

var (
	// ErrBadSubmission marks 400-class submission failures.
	ErrBadSubmission = errors.New("bad submission")
	// ErrFormNotFound marks an unknown form key.
	ErrFormNotFound = errors.New("form not found")
)

// Submission is a parsed form post: the control inputs plus the opaque
// template variables.
type Submission struct {
	FormKey        string
	RecipientNames []string
	Vars           map[string]interface{}
}

// ParseSubmission splits posted fields into control inputs and template
// data. Only the closed `_mm_` set is control; everything else is opaque
// data. Names that used to steer recipient selection (domain, form_id,
// secret, recipient) are deliberately denied any control meaning, so a
// submitter cannot redirect mail by posting recipient=attacker@....
func ParseSubmission(fields map[string][]string) (*Submission, error) {
	sub := &Submission{Vars: make(map[string]interface{})}

	for name, values := range fields {
		value := ""
		if len(values) > 0 {
			value = values[0]
		}

		if strings.HasPrefix(name, ReservedPrefix) {
			switch name {
			case FieldFormKey:
				sub.FormKey = strings.TrimSpace(value)
			case FieldRecipients:
				for _, n := range strings.Split(value, ",") {
					if n = strings.TrimSpace(n); n != "" {
						sub.RecipientNames = append(sub.RecipientNames, n)
					}
				}
			default:
				return nil, fmt.Errorf("%w: unknown reserved field %q", ErrBadSubmission, name)
			}
			continue
		}

		if len(values) > 1 {
			sub.Vars[name] = values
		} else {
			sub.Vars[name] = value
		}
	}

	if sub.FormKey == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrBadSubmission, FieldFormKey)
	}
	return sub, nil
}

// Store is the persistence surface the form service depends on.
type Store interface {
	GetFormByKey(ctx context.Context, formKey string) (*model.Form, error)
	GetAnyDomainByName(ctx context.Context, name string) (*model.Domain, error)
	ResolveRecipient(ctx context.Context, domainID uuid.UUID, formKey, name string) (string, error)
}

// Service handles form submissions end to end: form lookup, allow-list
// recipient resolution, render, send.
type Service struct {
	store      Store
	dispatcher *mailer.Dispatcher
}

// NewService creates the form dispatch service.
func NewService(store Store, dispatcher *mailer.Dispatcher) *Service {
	return &Service{store: store, dispatcher: dispatcher}
}

// Submit dispatches one parsed submission. Recipient short names that are
// not on the allow-list are dropped silently; if nothing resolves the
// form's default recipient is used, and with no default either the
// submission fails as a bad request.
func (s *Service) Submit(ctx context.Context, sub *Submission, meta mailer.RequestMeta) (int, error) {
	f, err := s.store.GetFormByKey(ctx, sub.FormKey)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, ErrFormNotFound
	}

	domain, err := s.store.GetAnyDomainByName(ctx, f.Domain)
	if err != nil {
		return 0, err
	}

	recipients, err := s.resolveRecipients(ctx, f, sub.RecipientNames)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, fmt.Errorf("%w: no deliverable recipients", ErrBadSubmission)
	}

	// Reuse the transactional dispatch path; a form is a template with its
	// own sender/subject defaults.
	tpl := &model.Template{
		ID:        f.ID,
		Domain:    f.Domain,
		Name:      f.IDName,
		Locale:    f.Locale,
		Subject:   f.Subject,
		Sender:    f.Sender,
		Body:      f.Body,
		Slug:      "form-" + f.FormKey,
		Assets:    f.Assets,
		UpdatedAt: f.UpdatedAt,
	}

	return s.dispatcher.Dispatch(ctx, tpl, domain, recipients, sub.Vars, meta)
}

func (s *Service) resolveRecipients(ctx context.Context, f *model.Form, names []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	for _, name := range names {
		email, err := s.store.ResolveRecipient(ctx, f.DomainID, f.FormKey, name)
		if err != nil {
			return nil, err
		}
		if email == "" {
			logger.Debug("dropping unlisted recipient name", "form", f.IDName, "name", name)
			continue
		}
		if !seen[email] {
			seen[email] = true
			out = append(out, email)
		}
	}

	if len(out) == 0 && f.Recipient != "" {
		out = append(out, f.Recipient)
	}
	return out, nil
}
