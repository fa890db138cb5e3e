package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/twalmsley/FlashSales-sub001/internal/actor"
)

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	userID := uuid.New()

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := actor.UserID(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != userID {
			t.Fatalf("user id from context = %s, want %s", id, userID)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+m.Sign(userID))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: authCookieName, Value: m.Sign(uuid.New())})

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")
	userID := uuid.New()

	tests := []struct {
		name   string
		header string
	}{
		{name: "no token", header: ""},
		{name: "foreign signature", header: "Bearer " + other.Sign(userID)},
		{name: "tampered id", header: "Bearer " + uuid.NewString() + "." + m.signature(userID.String())},
		{name: "no signature", header: "Bearer " + userID.String()},
		{name: "nil id", header: "Bearer " + m.Sign(uuid.Nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	adminID := uuid.New()

	tests := []struct {
		name       string
		key        string
		header     string
		actor      string
		wantStatus int
		wantActor  bool
	}{
		{name: "valid key", key: "k", header: "k", wantStatus: http.StatusOK},
		{name: "valid key with actor", key: "k", header: "k", actor: adminID.String(), wantStatus: http.StatusOK, wantActor: true},
		{name: "wrong key", key: "k", header: "x", wantStatus: http.StatusForbidden},
		{name: "admin disabled", key: "", header: "", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := actor.UserID(r.Context())
				if ok != tt.wantActor {
					t.Fatalf("actor present = %v, want %v", ok, tt.wantActor)
				}
				if ok && id != adminID {
					t.Fatalf("actor = %s, want %s", id, adminID)
				}
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/admin/products", nil)
			r.Header.Set(AdminKeyHeader, tt.header)
			if tt.actor != "" {
				r.Header.Set(ActorHeader, tt.actor)
			}

			AdminOnly(tt.key)(next).ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
