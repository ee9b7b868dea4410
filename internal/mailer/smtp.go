package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/config"
)

// SMTPTransport delivers messages through a plain SMTP relay, building the
// multipart/alternative body by hand.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	startTLS bool
}

// NewSMTPTransport creates an SMTP transport from config.
func NewSMTPTransport(cfg config.SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host not configured")
	}
	return &SMTPTransport{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		startTLS: cfg.StartTLS,
	}, nil
}

// Send delivers a single message. The context deadline bounds the dial; the
// SMTP conversation itself uses the connection's deadline.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	body, err := t.buildMessage(msg)
	if err != nil {
		return err
	}

	// The envelope sender must be a bare address even when the From header
	// carries a display name.
	from := msg.From
	if parsed, err := mail.ParseAddress(msg.From); err == nil {
		from = parsed.Address
	}

	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	return t.sendSMTP(ctx, addr, from, msg.To, body)
}

func (t *SMTPTransport) buildMessage(msg *Message) ([]byte, error) {
	boundary := fmt.Sprintf("=_%s", uuid.New().String()[:16])

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Message-ID: <%s@mailform>\r\n", uuid.New().String())
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	buf.WriteString("\r\n")

	if msg.Text != "" {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		if err := writeQP(&buf, msg.Text); err != nil {
			return nil, err
		}
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	if err := writeQP(&buf, msg.HTML); err != nil {
		return nil, err
	}
	buf.WriteString("\r\n")
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), nil
}

func writeQP(buf *bytes.Buffer, s string) error {
	w := quotedprintable.NewWriter(buf)
	if _, err := w.Write([]byte(s)); err != nil {
		return err
	}
	return w.Close()
}

func (t *SMTPTransport) sendSMTP(ctx context.Context, addr, from, to string, body []byte) error {
	d := net.Dialer{Timeout: 30 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(60 * time.Second))
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if t.startTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: t.host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if t.username != "" {
		auth := smtp.PlainAuth("", t.username, t.password, t.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}
