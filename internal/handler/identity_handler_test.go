package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunedivision/taskhub/internal/model"
)

// mockIdentitySyncer はIdentitySyncerのモック実装。
type mockIdentitySyncer struct {
	syncFn func(ctx context.Context, claims *model.Claims) (*model.User, error)
}

func (m *mockIdentitySyncer) Sync(ctx context.Context, claims *model.Claims) (*model.User, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx, claims)
	}
	return nil, nil
}

// mockSessionIssuer はSessionIssuerのモック実装。
type mockSessionIssuer struct {
	issueFn func(ctx context.Context, userID string) (*model.Session, error)
}

func (m *mockSessionIssuer) IssueSession(ctx context.Context, userID string) (*model.Session, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, userID)
	}
	return &model.Session{ID: "sess-sync", UserID: userID}, nil
}

func TestIdentityHandler_Sync_DisabledWithoutSecret(t *testing.T) {
	h := NewIdentityHandler(&mockIdentitySyncer{}, &mockSessionIssuer{}, "", testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/identity/sync", bytes.NewBufferString(`{"sub":"s"}`))
	req.Header.Set("X-Identity-Secret", "anything")
	w := httptest.NewRecorder()

	h.Sync(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestIdentityHandler_Sync_RejectsWrongSecret(t *testing.T) {
	called := false
	syncer := &mockIdentitySyncer{
		syncFn: func(ctx context.Context, claims *model.Claims) (*model.User, error) {
			called = true
			return nil, nil
		},
	}
	h := NewIdentityHandler(syncer, &mockSessionIssuer{}, "topsecret", testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/identity/sync", bytes.NewBufferString(`{"sub":"s"}`))
	req.Header.Set("X-Identity-Secret", "guess")
	w := httptest.NewRecorder()

	h.Sync(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("Sync should not be called with wrong secret")
	}
}

func TestIdentityHandler_Sync_Success(t *testing.T) {
	syncer := &mockIdentitySyncer{
		syncFn: func(ctx context.Context, claims *model.Claims) (*model.User, error) {
			if claims.Sub != "cognito-sub-1" {
				t.Errorf("Sub = %q, want %q", claims.Sub, "cognito-sub-1")
			}
			if len(claims.Groups) != 1 || claims.Groups[0] != "Team A" {
				t.Errorf("Groups = %v, want [Team A]", claims.Groups)
			}
			return &model.User{ID: "user-1", Username: "cognito-sub-1", Email: claims.Email}, nil
		},
	}
	issuer := &mockSessionIssuer{
		issueFn: func(ctx context.Context, userID string) (*model.Session, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			return &model.Session{ID: "sess-sync", UserID: userID}, nil
		},
	}
	h := NewIdentityHandler(syncer, issuer, "topsecret", testAuthConfig())

	body := `{"sub": "cognito-sub-1", "email": "alice@example.com", "cognito:groups": ["Team A"]}`
	req := httptest.NewRequest(http.MethodPost, "/auth/identity/sync", bytes.NewBufferString(body))
	req.Header.Set("X-Identity-Secret", "topsecret")
	w := httptest.NewRecorder()

	h.Sync(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	cookie := sessionCookie(t, w)
	if cookie == nil {
		t.Fatal("session_id cookie not set")
	}
	if cookie.Value != "sess-sync" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "sess-sync")
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["id"] != "user-1" {
		t.Errorf("id = %v, want %q", result["id"], "user-1")
	}
}
