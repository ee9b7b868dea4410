// Package auth implements bearer-token authentication for the mailer API.
// Tokens are stored as keyed HMAC-SHA256 hashes; rows still carrying a
// legacy plaintext token are migrated to hashed form on their first
// successful authentication.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/model"
	"github.com/brightsend/mailform/internal/pkg/logger"
)

// Store is the persistence surface the service depends on.
type Store interface {
	GetUserByTokenHash(ctx context.Context, hash string) (*model.User, error)
	GetUserByLegacyToken(ctx context.Context, token string) (*model.User, error)
	MigrateUserToken(ctx context.Context, userID uuid.UUID, hash string) error
}

// Service authenticates bearer tokens against the user store.
type Service struct {
	store  Store
	pepper string
}

// NewService creates an authenticator. The pepper keys the token HMAC and
// must stay stable for the lifetime of the stored hashes.
func NewService(store Store, pepper string) (*Service, error) {
	if pepper == "" {
		return nil, fmt.Errorf("auth pepper is required")
	}
	return &Service{store: store, pepper: pepper}, nil
}

// HashToken returns the keyed hash stored in users.token_hash.
func (s *Service) HashToken(token string) string {
	mac := hmac.New(sha256.New, []byte(s.pepper))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate resolves a bearer token to a user. A legacy plaintext match
// triggers a best-effort migration to hashed storage; migration failure is
// logged and swallowed so the request itself still succeeds.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}

	user, err := s.store.GetUserByTokenHash(ctx, s.HashToken(token))
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = s.store.GetUserByLegacyToken(ctx, token)
	if err != nil || user == nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(user.Token), []byte(token)) != 1 {
		return nil, nil
	}

	if err := s.store.MigrateUserToken(ctx, user.ID, s.HashToken(token)); err != nil {
		logger.Warn("legacy token migration failed", "user_id", user.ID.String(), "error", err.Error())
	} else {
		user.TokenHash = s.HashToken(token)
		user.Token = ""
	}
	return user, nil
}

type contextKey string

const userKey contextKey = "mailform.user"

// UserFromContext returns the authenticated user placed by Middleware.
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

// Middleware guards a chi route group with bearer-token authentication and
// injects the resolved user into the request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		user, err := s.Authenticate(r.Context(), token)
		if err != nil {
			logger.Error("auth lookup failed", "error", err.Error())
			unauthorized(w)
			return
		}
		if user == nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") || strings.HasPrefix(h, "bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
