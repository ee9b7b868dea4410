// Package mailer renders and delivers transactional messages.
package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// Message is a fully rendered email ready for a transport.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers a single rendered message. Implementations: SMTP and
// AWS SES v2.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// ValidateRecipients splits a comma-separated recipient list and parses
// every entry as an RFC 5322 address. The returned invalid slice holds the
// original malformed entries so callers can report the exact subset.
func ValidateRecipients(list string) (valid []string, invalid []string) {
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, err := mail.ParseAddress(raw)
		if err != nil || !strings.Contains(addr.Address, "@") {
			invalid = append(invalid, raw)
			continue
		}
		valid = append(valid, addr.Address)
	}
	return valid, invalid
}

// ErrInvalidRecipients is returned when a send request carries at least one
// malformed address. The whole request is rejected; no partial sends.
type ErrInvalidRecipients struct {
	Invalid []string
}

func (e *ErrInvalidRecipients) Error() string {
	return fmt.Sprintf("invalid recipient addresses: %s", strings.Join(e.Invalid, ", "))
}
