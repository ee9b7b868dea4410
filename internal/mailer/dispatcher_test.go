package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/model"
	"github.com/brightsend/mailform/internal/render"
)

// fakeTransport records sent messages and optionally fails after a count.
type fakeTransport struct {
	sent      []*Message
	failAfter int // fail on the (failAfter+1)-th send; -1 never fails
}

func (f *fakeTransport) Send(_ context.Context, msg *Message) error {
	if f.failAfter >= 0 && len(f.sent) >= f.failAfter {
		return errors.New("smtp: 451 temporary failure")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testTpl() *model.Template {
	return &model.Template{
		ID:        uuid.New(),
		Domain:    "example.com",
		Name:      "welcome",
		Locale:    "en",
		Subject:   "Hi {{ name }}",
		Sender:    "no-reply@example.com",
		Body:      "<p>Hello {{ name }}, sent to {{ _recipient }}</p>",
		Slug:      "example-com-en-welcome",
		Assets:    model.StringList{"logo.png"},
		UpdatedAt: time.Now(),
	}
}

func TestValidateRecipients(t *testing.T) {
	tests := []struct {
		name        string
		list        string
		wantValid   []string
		wantInvalid []string
	}{
		{"single valid", "a@example.com", []string{"a@example.com"}, nil},
		{"two valid with spaces", " a@example.com , b@example.com ", []string{"a@example.com", "b@example.com"}, nil},
		{"display name form", "Ada <ada@example.com>", []string{"ada@example.com"}, nil},
		{"one invalid", "a@example.com,not-an-address", []string{"a@example.com"}, []string{"not-an-address"}},
		{"all invalid", "x,,y", nil, []string{"x", "y"}},
		{"empty entries skipped", "a@example.com,,", []string{"a@example.com"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, invalid := ValidateRecipients(tt.list)
			if len(valid) != len(tt.wantValid) {
				t.Fatalf("valid = %v, want %v", valid, tt.wantValid)
			}
			for i := range valid {
				if valid[i] != tt.wantValid[i] {
					t.Errorf("valid[%d] = %q, want %q", i, valid[i], tt.wantValid[i])
				}
			}
			if len(invalid) != len(tt.wantInvalid) {
				t.Fatalf("invalid = %v, want %v", invalid, tt.wantInvalid)
			}
		})
	}
}

func TestDispatchRendersPerRecipient(t *testing.T) {
	ft := &fakeTransport{failAfter: -1}
	d := NewDispatcher(render.NewEngine(false), ft, "/asset", "fallback@example.com")

	tpl := testTpl()
	meta := RequestMeta{RemoteIP: "203.0.113.9", ReceivedAt: time.Now()}

	sent, err := d.Dispatch(context.Background(), tpl, nil,
		[]string{"one@example.com", "two@example.com"},
		map[string]interface{}{"name": "Ada"}, meta)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sent != 2 || len(ft.sent) != 2 {
		t.Fatalf("sent = %d, transport saw %d", sent, len(ft.sent))
	}

	first := ft.sent[0]
	if first.From != "no-reply@example.com" {
		t.Errorf("from = %q", first.From)
	}
	if first.Subject != "Hi Ada" {
		t.Errorf("subject = %q", first.Subject)
	}
	if !strings.Contains(first.HTML, "sent to one@example.com") {
		t.Errorf("recipient var not injected: %q", first.HTML)
	}
	if !strings.Contains(ft.sent[1].HTML, "sent to two@example.com") {
		t.Errorf("second recipient wrong: %q", ft.sent[1].HTML)
	}
	if first.Text == "" || strings.Contains(first.Text, "<p>") {
		t.Errorf("plain-text alternative: %q", first.Text)
	}
}

func TestDispatchAttachmentMap(t *testing.T) {
	ft := &fakeTransport{failAfter: -1}
	d := NewDispatcher(render.NewEngine(false), ft, "/asset", "")

	tpl := testTpl()
	tpl.Body = `<img src="{{ _attachments['logo.png'] }}">`

	if _, err := d.Dispatch(context.Background(), tpl, nil,
		[]string{"a@example.com"}, nil, RequestMeta{}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(ft.sent[0].HTML, "/asset/example.com/logo.png") {
		t.Errorf("attachment URL missing: %q", ft.sent[0].HTML)
	}
}

func TestDispatchAbortsOnTransportError(t *testing.T) {
	ft := &fakeTransport{failAfter: 1}
	d := NewDispatcher(render.NewEngine(false), ft, "/asset", "")

	sent, err := d.Dispatch(context.Background(), testTpl(), nil,
		[]string{"a@example.com", "b@example.com", "c@example.com"},
		nil, RequestMeta{})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1 (abort after first failure)", sent)
	}
	if !strings.Contains(err.Error(), "451") {
		t.Errorf("transport error not surfaced: %v", err)
	}
}

func TestDispatchSenderFallbackToDomain(t *testing.T) {
	ft := &fakeTransport{failAfter: -1}
	d := NewDispatcher(render.NewEngine(false), ft, "/asset", "svc@example.net")

	tpl := testTpl()
	tpl.Sender = ""
	domain := &model.Domain{Name: "example.com", DefaultSender: "domain@example.com"}

	if _, err := d.Dispatch(context.Background(), tpl, domain,
		[]string{"a@example.com"}, nil, RequestMeta{}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ft.sent[0].From != "domain@example.com" {
		t.Errorf("from = %q, want domain default", ft.sent[0].From)
	}

	// No template or domain sender: service default.
	domain.DefaultSender = ""
	ft.sent = nil
	if _, err := d.Dispatch(context.Background(), tpl, domain,
		[]string{"a@example.com"}, nil, RequestMeta{}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ft.sent[0].From != "svc@example.net" {
		t.Errorf("from = %q, want service default", ft.sent[0].From)
	}
}

func TestDispatchNoRecipients(t *testing.T) {
	d := NewDispatcher(render.NewEngine(false), &fakeTransport{failAfter: -1}, "/asset", "x@example.com")
	if _, err := d.Dispatch(context.Background(), testTpl(), nil, nil, nil, RequestMeta{}); err == nil {
		t.Error("Dispatch accepted empty recipient list")
	}
}

func TestReservedVarsNotOverridable(t *testing.T) {
	ft := &fakeTransport{failAfter: -1}
	d := NewDispatcher(render.NewEngine(false), ft, "/asset", "")

	tpl := testTpl()
	tpl.Body = "to: {{ _recipient }}"

	if _, err := d.Dispatch(context.Background(), tpl, nil, []string{"real@example.com"},
		map[string]interface{}{"_recipient": "spoofed@example.com"}, RequestMeta{}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(ft.sent[0].HTML, "real@example.com") {
		t.Errorf("reserved var overridden: %q", ft.sent[0].HTML)
	}
}
