// Package auth は管理者認証のセッションゲートを提供する。
// 認証（資格情報の検証）はIDプロバイダーに委譲し、
// 認可（管理者であるか）は必ず自前のadmin_usersテーブルで判定する。
// プロバイダーのクレームだけを根拠に管理者と判定することはない。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/folio/internal/identity"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/repository"
)

// GateConfig はセッションゲートの設定。
type GateConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Gate は管理者セッションの状態機械を提供する。
// 状態はUninitialized → Loading → {Authenticated, Unauthenticated}と遷移し、
// Initialize完了後にLoadingへ戻ることはない。
type Gate struct {
	provider    identity.Provider
	adminRepo   repository.AdminRepository
	sessionRepo repository.SessionRepository
	config      GateConfig

	mu    sync.RWMutex
	state model.GateState
	admin *model.AdminIdentity
}

// NewGate はGateを生成する。初期状態はUninitialized。
func NewGate(
	provider identity.Provider,
	adminRepo repository.AdminRepository,
	sessionRepo repository.SessionRepository,
	config GateConfig,
) *Gate {
	return &Gate{
		provider:    provider,
		adminRepo:   adminRepo,
		sessionRepo: sessionRepo,
		config:      config,
		state:       model.GateUninitialized,
	}
}

// Initialize は永続化済みセッションからゲートの状態を復元する。
// 実行中はLoading状態となり、完了時は必ずAuthenticatedまたは
// Unauthenticatedのいずれかに解決される。復元中のエラーは
// Unauthenticatedへの解決として扱い、エラーを返さない。
func (g *Gate) Initialize(ctx context.Context) {
	g.setState(model.GateLoading, nil)

	session, err := g.sessionRepo.FindLatest(ctx)
	if err != nil {
		slog.Warn("failed to restore session, treating as signed out", slog.String("error", err.Error()))
		g.setState(model.GateUnauthenticated, nil)
		return
	}
	if session == nil {
		g.setState(model.GateUnauthenticated, nil)
		return
	}

	admin, err := g.authorize(ctx, session.AdminEmail)
	if err != nil {
		// 認可が取り消されたセッションは残さない
		g.discardSession(ctx, session)
		g.setState(model.GateUnauthenticated, nil)
		return
	}

	slog.Info("session restored", slog.String("admin_email", admin.Email))
	g.setState(model.GateAuthenticated, admin)
}

// SignIn はメールアドレスとパスワードでサインインし、ローカルセッションを発行する。
// 処理は資格情報の検証 → 管理者認可 → 最終ログイン日時の更新 → セッション発行の順で行う。
// 資格情報の検証に失敗した場合はゲートの状態を変更せずにエラーを返す。
// 認可に失敗した場合は発行済みのプロバイダー側セッションを失効させ、
// Unauthenticatedに解決される。
func (g *Gate) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	// 1. IDプロバイダーで資格情報を検証。
	// ここでの失敗はこのサインイン試行だけの失敗であり、復元済みのセッションとは
	// 無関係なため、ゲートの状態には触れない。
	providerSession, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, model.NewInvalidCredentialsError()
		}
		slog.Error("identity provider unreachable", slog.String("error", err.Error()))
		return nil, model.NewProviderUnavailableError()
	}

	// 2. admin_usersテーブルで認可を判定
	admin, err := g.authorize(ctx, email)
	if err != nil {
		// 認証は成功しているため、発行済みのプロバイダー側セッションを失効させる。
		// 失効の失敗はサインイン結果に影響させない。
		if revokeErr := g.provider.SignOut(ctx, providerSession.AccessToken); revokeErr != nil {
			slog.Warn("failed to revoke provider session", slog.String("error", revokeErr.Error()))
		}
		g.setState(model.GateUnauthenticated, nil)
		return nil, err
	}

	// 3. 最終ログイン日時をベストエフォートで更新。失敗してもサインインは成立する。
	if err := g.adminRepo.UpdateLastLogin(ctx, admin.Email, time.Now()); err != nil {
		slog.Warn("failed to update last login time",
			slog.String("admin_email", admin.Email),
			slog.String("error", err.Error()),
		)
	}

	// 4. ローカルセッションを発行
	session, err := g.createSession(ctx, admin.Email, providerSession.AccessToken)
	if err != nil {
		g.setState(model.GateUnauthenticated, nil)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("admin signed in", slog.String("admin_email", admin.Email))
	g.setState(model.GateAuthenticated, admin)
	return session, nil
}

// SignOut はセッションを破棄し、プロバイダー側セッションも失効させる。
// 冪等であり、セッションが存在しない場合や失効に失敗した場合でも
// ゲートは必ずUnauthenticatedに解決され、エラーを返さない。
func (g *Gate) SignOut(ctx context.Context, sessionID string) {
	defer g.setState(model.GateUnauthenticated, nil)

	if sessionID == "" {
		return
	}

	session, err := g.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		slog.Warn("failed to find session on sign-out", slog.String("error", err.Error()))
		return
	}
	if session == nil {
		return
	}

	if err := g.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
		slog.Warn("failed to delete session on sign-out", slog.String("error", err.Error()))
	}
	if err := g.provider.SignOut(ctx, session.ProviderToken); err != nil {
		slog.Warn("failed to revoke provider session on sign-out", slog.String("error", err.Error()))
	}

	slog.Info("admin signed out", slog.String("admin_email", session.AdminEmail))
}

// Snapshot は現在のゲート状態のイミュータブルなコピーを返す。
func (g *Gate) Snapshot() model.GateSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var adminCopy *model.AdminIdentity
	if g.admin != nil {
		c := *g.admin
		adminCopy = &c
	}
	return model.GateSnapshot{
		State:         g.state,
		Authenticated: g.state == model.GateAuthenticated,
		Admin:         adminCopy,
	}
}

// VerifySession はセッションIDを検証し、対応する管理者を返す。
// 管理者レコードは毎回データベースから読み直し、ゲートのキャッシュを信用しない。
// サインイン後に無効化されたアカウントはここで検出される。
func (g *Gate) VerifySession(ctx context.Context, sessionID string) (*model.AdminIdentity, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := g.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	admin, err := g.adminRepo.FindByEmail(ctx, session.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	if admin == nil {
		return nil, model.NewNotAuthorizedError()
	}
	if !admin.IsActive {
		return nil, model.NewAccountDeactivatedError()
	}

	return admin, nil
}

// authorize はメールアドレスに対応する有効な管理者レコードを取得する。
// レコードが存在しない（0件または複数件）場合はNotAuthorized、
// 存在するが無効化されている場合はAccountDeactivatedを返す。
func (g *Gate) authorize(ctx context.Context, email string) (*model.AdminIdentity, error) {
	admin, err := g.adminRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	if admin == nil {
		return nil, model.NewNotAuthorizedError()
	}
	if !admin.IsActive {
		return nil, model.NewAccountDeactivatedError()
	}
	return admin, nil
}

// createSession はローカルセッションを作成し永続化する。
func (g *Gate) createSession(ctx context.Context, adminEmail, providerToken string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:            sessionID,
		AdminEmail:    adminEmail,
		ProviderToken: providerToken,
		ExpiresAt:     time.Now().Add(time.Duration(g.config.SessionMaxAge) * time.Second),
		CreatedAt:     time.Now(),
	}

	if err := g.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// discardSession は認可を失ったセッションをローカル・プロバイダー両側で破棄する。
func (g *Gate) discardSession(ctx context.Context, session *model.Session) {
	if err := g.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
		slog.Warn("failed to delete stale session", slog.String("error", err.Error()))
	}
	if err := g.provider.SignOut(ctx, session.ProviderToken); err != nil {
		slog.Warn("failed to revoke stale provider session", slog.String("error", err.Error()))
	}
}

// setState はゲートの状態を更新する。
func (g *Gate) setState(state model.GateState, admin *model.AdminIdentity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
	g.admin = admin
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
