package api

import (
	"net/http"
	"strings"

	"github.com/brightsend/mailform/internal/pkg/logger"
)

// respondSafeError logs the internal error and sends a sanitized JSON
// error. Internal details (SQL, file paths, upstream hosts) never reach
// the client on 5xx responses.
func respondSafeError(w http.ResponseWriter, code int, internalErr error, publicMsg string) {
	if internalErr != nil {
		logger.Error(publicMsg, "status", code, "error", internalErr.Error())
	}
	respondError(w, code, publicMsg)
}

// safeErrorMessage maps internal error text to a public-safe message.
// 4xx messages come from user input and pass through unchanged.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		if internalErr != nil {
			return internalErr.Error()
		}
		return "Bad request"
	}

	if internalErr == nil {
		return "An internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())

	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Service temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"

	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "pq:") ||
		strings.Contains(errStr, "query") ||
		strings.Contains(errStr, "scan") ||
		strings.Contains(errStr, "transaction") ||
		strings.Contains(errStr, "database"):
		return "A database error occurred"

	case strings.Contains(errStr, "smtp") ||
		strings.Contains(errStr, "ses") ||
		strings.Contains(errStr, "relay"):
		return "Message delivery failed"

	default:
		return "An internal error occurred"
	}
}
