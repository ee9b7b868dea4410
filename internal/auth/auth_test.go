package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/brightsend/mailform/internal/model"
)

// fakeStore keeps users in memory and records migrations.
type fakeStore struct {
	byHash     map[string]*model.User
	byLegacy   map[string]*model.User
	migrations int
	migrateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byHash:   make(map[string]*model.User),
		byLegacy: make(map[string]*model.User),
	}
}

func (f *fakeStore) GetUserByTokenHash(_ context.Context, hash string) (*model.User, error) {
	return f.byHash[hash], nil
}

func (f *fakeStore) GetUserByLegacyToken(_ context.Context, token string) (*model.User, error) {
	return f.byLegacy[token], nil
}

func (f *fakeStore) MigrateUserToken(_ context.Context, userID uuid.UUID, hash string) error {
	if f.migrateErr != nil {
		return f.migrateErr
	}
	f.migrations++
	for tok, u := range f.byLegacy {
		if u.ID == userID {
			delete(f.byLegacy, tok)
			u.Token = ""
			u.TokenHash = hash
			f.byHash[hash] = u
		}
	}
	return nil
}

func TestNewServiceRequiresPepper(t *testing.T) {
	if _, err := NewService(newFakeStore(), ""); err == nil {
		t.Error("NewService accepted empty pepper")
	}
}

func TestHashTokenIsKeyed(t *testing.T) {
	s1, _ := NewService(newFakeStore(), "pepper-one")
	s2, _ := NewService(newFakeStore(), "pepper-two")

	if s1.HashToken("tok") == s2.HashToken("tok") {
		t.Error("hash does not depend on pepper")
	}
	if s1.HashToken("tok") != s1.HashToken("tok") {
		t.Error("hash is not deterministic")
	}
}

func TestAuthenticateByHash(t *testing.T) {
	store := newFakeStore()
	svc, _ := NewService(store, "pepper")

	u := &model.User{ID: uuid.New(), Name: "alice"}
	store.byHash[svc.HashToken("secret")] = u

	got, err := svc.Authenticate(context.Background(), "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("got %+v", got)
	}
	if store.migrations != 0 {
		t.Error("hash auth should not migrate")
	}
}

func TestLegacyTokenMigratesExactlyOnce(t *testing.T) {
	store := newFakeStore()
	svc, _ := NewService(store, "pepper")

	u := &model.User{ID: uuid.New(), Name: "bob", Token: "legacy-token"}
	store.byLegacy["legacy-token"] = u

	// First request: plaintext match, migrated.
	got, err := svc.Authenticate(context.Background(), "legacy-token")
	if err != nil || got == nil {
		t.Fatalf("first auth: %v, %+v", err, got)
	}
	if store.migrations != 1 {
		t.Fatalf("migrations = %d, want 1", store.migrations)
	}
	if got.Token != "" || got.TokenHash == "" {
		t.Errorf("user not migrated in place: %+v", got)
	}

	// Second request: hash path only, no further migration.
	got, err = svc.Authenticate(context.Background(), "legacy-token")
	if err != nil || got == nil {
		t.Fatalf("second auth: %v, %+v", err, got)
	}
	if store.migrations != 1 {
		t.Errorf("migrations = %d after second auth, want 1", store.migrations)
	}
}

func TestLegacyMigrationFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	store.migrateErr = context.DeadlineExceeded
	svc, _ := NewService(store, "pepper")

	u := &model.User{ID: uuid.New(), Token: "legacy"}
	store.byLegacy["legacy"] = u

	got, err := svc.Authenticate(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("Authenticate surfaced migration error: %v", err)
	}
	if got == nil {
		t.Fatal("request should still authenticate when migration fails")
	}
}

func TestAuthenticateUnknownToken(t *testing.T) {
	svc, _ := NewService(newFakeStore(), "pepper")

	got, err := svc.Authenticate(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestMiddleware(t *testing.T) {
	store := newFakeStore()
	svc, _ := NewService(store, "pepper")

	u := &model.User{ID: uuid.New(), Name: "carol"}
	store.byHash[svc.HashToken("good")] = u

	var seen *model.User
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   bool
	}{
		{"valid token", "Bearer good", http.StatusOK, true},
		{"wrong token", "Bearer bad", http.StatusUnauthorized, false},
		{"missing header", "", http.StatusUnauthorized, false},
		{"not bearer", "Basic Zm9v", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest("POST", "/v1/tx/message", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantUser && (seen == nil || seen.ID != u.ID) {
				t.Errorf("user not in context: %+v", seen)
			}
		})
	}
}
