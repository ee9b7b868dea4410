package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/brightsend/mailform/internal/model"
	"github.com/brightsend/mailform/internal/pkg/logger"
	"github.com/brightsend/mailform/internal/render"
)

// Reserved context keys injected alongside caller-supplied variables.
// Callers cannot override them; they are set after the caller vars.
const (
	varRecipient   = "_recipient"
	varAttachments = "_attachments"
	varRawVars     = "_vars"
	varMeta        = "_meta"
)

// RequestMeta carries request metadata exposed to templates under "_meta".
type RequestMeta struct {
	RemoteIP   string
	UserAgent  string
	ReceivedAt time.Time
}

// Dispatcher renders a resolved template once per recipient and sends the
// results sequentially through the configured transport.
type Dispatcher struct {
	engine        *render.Engine
	transport     Transport
	assetBase     string
	defaultSender string
}

// NewDispatcher creates a dispatcher. assetBase is the public URL prefix
// under which domain assets are served, used for the attachment-name map.
func NewDispatcher(engine *render.Engine, transport Transport, assetBase, defaultSender string) *Dispatcher {
	return &Dispatcher{
		engine:        engine,
		transport:     transport,
		assetBase:     assetBase,
		defaultSender: defaultSender,
	}
}

// Sender picks the message sender: template, then domain default, then the
// service-wide default.
func (d *Dispatcher) Sender(tpl *model.Template, domain *model.Domain) string {
	if tpl.Sender != "" {
		return tpl.Sender
	}
	if domain != nil && domain.DefaultSender != "" {
		return domain.DefaultSender
	}
	return d.defaultSender
}

// Dispatch renders and sends to each recipient in order. The first
// transport failure aborts the remaining loop; the count of messages
// already handed to the transport is returned alongside the error.
func (d *Dispatcher) Dispatch(ctx context.Context, tpl *model.Template, domain *model.Domain,
	recipients []string, vars map[string]interface{}, meta RequestMeta) (int, error) {

	if len(recipients) == 0 {
		return 0, fmt.Errorf("no recipients")
	}

	sender := d.Sender(tpl, domain)
	if sender == "" {
		return 0, fmt.Errorf("no sender configured for template %s", tpl.Name)
	}

	attachments := make(map[string]interface{}, len(tpl.Assets))
	for _, a := range tpl.Assets {
		attachments[a] = fmt.Sprintf("%s/%s/%s", d.assetBase, tpl.Domain, a)
	}

	// Body renders are cached per template version; subjects are short
	// enough that caching buys nothing.
	bodyKey := fmt.Sprintf("%s@%d", tpl.Slug, tpl.UpdatedAt.UnixNano())

	sent := 0
	for _, to := range recipients {
		bind := make(map[string]interface{}, len(vars)+4)
		for k, v := range vars {
			bind[k] = v
		}
		bind[varRecipient] = to
		bind[varAttachments] = attachments
		bind[varRawVars] = vars
		bind[varMeta] = map[string]interface{}{
			"remote_ip":   meta.RemoteIP,
			"user_agent":  meta.UserAgent,
			"received_at": meta.ReceivedAt.UTC().Format(time.RFC3339),
		}

		html, err := d.engine.Render(bodyKey, tpl.Body, bind)
		if err != nil {
			return sent, fmt.Errorf("template %s: %w", tpl.Name, err)
		}
		subject, err := d.engine.Render("", tpl.Subject, bind)
		if err != nil {
			return sent, fmt.Errorf("template %s subject: %w", tpl.Name, err)
		}

		msg := &Message{
			From:    sender,
			To:      to,
			Subject: subject,
			HTML:    html,
			Text:    render.PlainText(html),
		}
		if err := d.transport.Send(ctx, msg); err != nil {
			return sent, err
		}
		sent++
		logger.Info("message sent", "template", tpl.Name, "domain", tpl.Domain, "recipient", to)
	}

	return sent, nil
}
