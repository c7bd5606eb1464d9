// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/folio/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// adminContextKey はリクエストコンテキストに認証済み管理者を格納するためのキー。
var adminContextKey = contextKey("admin")

// SessionVerifier は管理ルートの保護に必要なインターフェース。
// auth.Gateの部分集合として定義する。
type SessionVerifier interface {
	Snapshot() model.GateSnapshot
	VerifySession(ctx context.Context, sessionID string) (*model.AdminIdentity, error)
}

// GuardConfig はルートガードの設定。
type GuardConfig struct {
	// LoginPath は未認証のページ遷移をリダイレクトする先。
	// 元の遷移先はnextクエリパラメータに保存する。
	LoginPath string
}

// DefaultGuardConfig はデフォルトのルートガード設定を返す。
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{LoginPath: "/admin/login"}
}

// NewGuardMiddleware は管理ルートを保護するミドルウェアを返す。
//
// ゲートの状態に応じて振る舞いを変える:
//   - 初期化前・初期化中: 判断を保留し、503とRetry-Afterで待機を指示する。
//     許可にも拒否にも倒さない。
//   - セッションなし・無効: ページ遷移はログイン画面へリダイレクトし、
//     元の遷移先をnextパラメータに保存する。APIリクエストには401を返す。
//   - 認証済みだが管理者レコードが無効化済み: 403の行き止まり。
//     リダイレクトせず、ループに陥らせない。
//   - 有効な管理者: 管理者情報をコンテキストに注入して通過させる。
//
// 無効化の判定はリクエストごとにDBを読み直すため、
// セッション発行後に無効化された管理者も即座に遮断される。
func NewGuardMiddleware(gate SessionVerifier, config GuardConfig) func(next http.Handler) http.Handler {
	loginPath := config.LoginPath
	if loginPath == "" {
		loginPath = DefaultGuardConfig().LoginPath
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 初期化が完了するまでは中立の待機応答
			snapshot := gate.Snapshot()
			if snapshot.State == model.GateUninitialized || snapshot.State == model.GateLoading {
				w.Header().Set("Retry-After", "1")
				WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
					Code:     "SESSION_RESTORING",
					Message:  "セッションを復元しています。",
					Category: "system",
					Action:   "しばらく待ってから再度お試しください。",
				})
				return
			}

			// 2. CookieからセッションIDを取得
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				denyUnauthenticated(w, r, loginPath)
				return
			}

			// 3. セッションと管理者レコードを検証
			admin, err := gate.VerifySession(r.Context(), cookie.Value)
			if err != nil {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) {
					slog.Error("failed to verify session",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}

				switch apiErr.Code {
				case model.ErrCodeAccountDeactivated, model.ErrCodeNotAuthorized:
					// 無効化済みアカウントはリダイレクトせず行き止まりにする
					WriteErrorResponse(w, http.StatusForbidden, apiErr)
				default:
					denyUnauthenticated(w, r, loginPath)
				}
				return
			}

			// 4. 認証済み管理者をコンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithAdmin(r.Context(), admin)))
		})
	}
}

// denyUnauthenticated は未認証リクエストを拒否する。
// ページ遷移はログイン画面へリダイレクトし、元の遷移先を保存する。
// APIリクエストには401を返す。
func denyUnauthenticated(w http.ResponseWriter, r *http.Request, loginPath string) {
	if wantsHTML(r) {
		dest := loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, dest, http.StatusFound)
		return
	}
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// wantsHTML はリクエストがブラウザのページ遷移かどうかを判定する。
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// AdminFromContext はリクエストコンテキストから認証済み管理者を取得する。
// ルートガードを通過したリクエストでのみ有効。
func AdminFromContext(ctx context.Context) (*model.AdminIdentity, error) {
	admin, ok := ctx.Value(adminContextKey).(*model.AdminIdentity)
	if !ok || admin == nil {
		return nil, fmt.Errorf("admin not found in context")
	}
	return admin, nil
}

// ContextWithAdmin はコンテキストに認証済み管理者を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAdmin(ctx context.Context, admin *model.AdminIdentity) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}
