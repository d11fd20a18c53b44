package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/dunedivision/taskhub/internal/middleware"
	"github.com/dunedivision/taskhub/internal/model"
)

// identitySecretHeader は検証済みクレーム同期エンドポイントの共有シークレットヘッダー。
const identitySecretHeader = "X-Identity-Secret"

// IdentitySyncer はクレーム同期ハンドラーが必要とするサービスインターフェース。
type IdentitySyncer interface {
	Sync(ctx context.Context, claims *model.Claims) (*model.User, error)
}

// SessionIssuer はパスワード検証を経ないログイン経路のセッション発行インターフェース。
type SessionIssuer interface {
	IssueSession(ctx context.Context, userID string) (*model.Session, error)
}

// IdentityHandler は外部IDプロバイダの検証済みクレームを受け取り、
// ローカルユーザーと同期してセッションを発行する。
// クレームの署名検証は呼び出し元（認証プロキシ）の責務で、
// このエンドポイントは共有シークレットで保護する。
type IdentityHandler struct {
	syncer  IdentitySyncer
	issuer  SessionIssuer
	secret  string
	cookies AuthHandlerConfig
}

// NewIdentityHandler はIdentityHandlerを生成する。
func NewIdentityHandler(syncer IdentitySyncer, issuer SessionIssuer, secret string, cookies AuthHandlerConfig) *IdentityHandler {
	return &IdentityHandler{
		syncer:  syncer,
		issuer:  issuer,
		secret:  secret,
		cookies: cookies,
	}
}

// Sync は検証済みクレームからユーザーを作成・更新し、セッションを発行する。
// POST /auth/identity/sync
func (h *IdentityHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		// シークレット未設定時はエンドポイントを無効化する。
		http.NotFound(w, r)
		return
	}
	provided := r.Header.Get(identitySecretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var claims model.Claims
	if !decodeJSON(w, r, &claims) {
		return
	}

	user, err := h.syncer.Sync(r.Context(), &claims)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.issuer.IssueSession(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to issue session after claims sync",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    session.ID,
		Path:     "/",
		Domain:   h.cookies.CookieDomain,
		MaxAge:   h.cookies.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.cookies.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
