// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/folio/internal/metrics"
	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
)

const sessionCookieName = "session_id"

// AuthGateInterface は認証ハンドラーが必要とするゲートのインターフェース。
type AuthGateInterface interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string)
	VerifySession(ctx context.Context, sessionID string) (*model.AdminIdentity, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は管理者認証のHTTPハンドラー。
type AuthHandler struct {
	gate      AuthGateInterface
	config    AuthHandlerConfig
	collector metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。collectorはnil可。
func NewAuthHandler(gate AuthGateInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		gate:      gate,
		config:    config,
		collector: collector,
	}
}

// loginRequest はサインインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// adminResponse は認証済み管理者のAPIレスポンス。
type adminResponse struct {
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Login はメールアドレスとパスワードでサインインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("メールアドレスとパスワードは必須です"))
		return
	}

	session, err := h.gate.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordSignInFailure(err)
		middleware.WriteError(w, err)
		return
	}
	h.recordSignIn(metrics.SignInSuccess)

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	admin, err := h.gate.VerifySession(r.Context(), session.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAdminResponse(admin))
}

// Logout はセッションを破棄する。冪等であり、常に成功する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		h.gate.SignOut(r.Context(), cookie.Value)
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のサインイン中の管理者情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	admin, err := h.gate.VerifySession(r.Context(), cookie.Value)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAdminResponse(admin))
}

// toAdminResponse はmodel.AdminIdentityからAPIレスポンスに変換する。
func toAdminResponse(admin *model.AdminIdentity) adminResponse {
	return adminResponse{
		Email:       admin.Email,
		DisplayName: admin.DisplayName,
		LastLoginAt: admin.LastLoginAt,
	}
}

// recordSignIn はサインイン結果をメトリクスに記録する。
func (h *AuthHandler) recordSignIn(result string) {
	if h.collector != nil {
		h.collector.RecordSignIn(result)
	}
}

// recordSignInFailure はエラー種別に応じたサインイン失敗をメトリクスに記録する。
func (h *AuthHandler) recordSignInFailure(err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		h.recordSignIn(metrics.SignInProviderError)
		return
	}
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials:
		h.recordSignIn(metrics.SignInInvalidCredentials)
	case model.ErrCodeNotAuthorized, model.ErrCodeAccountDeactivated:
		h.recordSignIn(metrics.SignInNotAuthorized)
	default:
		h.recordSignIn(metrics.SignInProviderError)
	}
}
