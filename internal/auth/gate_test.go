package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/folio/internal/identity"
	"github.com/hitoshi/folio/internal/model"
)

// mockProvider はテスト用のIDプロバイダーモック。
type mockProvider struct {
	SignInWithPasswordFunc func(ctx context.Context, email, password string) (*identity.ProviderSession, error)
	SignOutFunc            func(ctx context.Context, accessToken string) error

	signOutCalls []string
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.ProviderSession, error) {
	return m.SignInWithPasswordFunc(ctx, email, password)
}

func (m *mockProvider) SignOut(ctx context.Context, accessToken string) error {
	m.signOutCalls = append(m.signOutCalls, accessToken)
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, accessToken)
	}
	return nil
}

// mockAdminRepo はテスト用の管理者リポジトリモック。
type mockAdminRepo struct {
	FindByEmailFunc     func(ctx context.Context, email string) (*model.AdminIdentity, error)
	UpdateLastLoginFunc func(ctx context.Context, email string, at time.Time) error

	lastLoginUpdates []string
}

func (m *mockAdminRepo) FindByEmail(ctx context.Context, email string) (*model.AdminIdentity, error) {
	return m.FindByEmailFunc(ctx, email)
}

func (m *mockAdminRepo) UpdateLastLogin(ctx context.Context, email string, at time.Time) error {
	m.lastLoginUpdates = append(m.lastLoginUpdates, email)
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, email, at)
	}
	return nil
}

// mockSessionRepo はテスト用のセッションリポジトリモック。
type mockSessionRepo struct {
	CreateFunc     func(ctx context.Context, session *model.Session) error
	FindByIDFunc   func(ctx context.Context, id string) (*model.Session, error)
	FindLatestFunc func(ctx context.Context) (*model.Session, error)
	DeleteByIDFunc func(ctx context.Context, id string) error

	created []*model.Session
	deleted []string
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	m.created = append(m.created, session)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) FindLatest(ctx context.Context) (*model.Session, error) {
	if m.FindLatestFunc != nil {
		return m.FindLatestFunc(ctx)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if m.DeleteByIDFunc != nil {
		return m.DeleteByIDFunc(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func activeAdmin(email string) *model.AdminIdentity {
	now := time.Now()
	return &model.AdminIdentity{
		ID:          "admin-1",
		Email:       email,
		DisplayName: "Hitoshi",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newTestGate(provider *mockProvider, adminRepo *mockAdminRepo, sessionRepo *mockSessionRepo) *Gate {
	return NewGate(provider, adminRepo, sessionRepo, GateConfig{SessionMaxAge: 3600})
}

// 生成直後のゲートはUninitialized状態であることを検証
func TestGate_InitialState(t *testing.T) {
	gate := newTestGate(&mockProvider{}, &mockAdminRepo{}, &mockSessionRepo{})

	snapshot := gate.Snapshot()
	if snapshot.State != model.GateUninitialized {
		t.Errorf("expected state %s, got %s", model.GateUninitialized, snapshot.State)
	}
	if snapshot.Authenticated {
		t.Error("expected not authenticated")
	}
}

// サインイン成功時にセッションが発行され、Authenticated状態になることを検証
func TestGate_SignIn_Success(t *testing.T) {
	provider := &mockProvider{
		SignInWithPasswordFunc: func(ctx context.Context, email, password string) (*identity.ProviderSession, error) {
			return &identity.ProviderSession{AccessToken: "provider-token", Email: email}, nil
		},
	}
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			return activeAdmin(email), nil
		},
	}
	sessionRepo := &mockSessionRepo{}

	gate := newTestGate(provider, adminRepo, sessionRepo)
	session, err := gate.SignIn(context.Background(), "admin@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.ID == "" {
		t.Error("expected non-empty session ID")
	}
	if len(session.ID) != 64 {
		t.Errorf("expected 64-char hex session ID, got %d chars", len(session.ID))
	}
	if session.AdminEmail != "admin@example.com" {
		t.Errorf("expected admin email, got %q", session.AdminEmail)
	}
	if session.ProviderToken != "provider-token" {
		t.Errorf("expected provider token to be retained, got %q", session.ProviderToken)
	}
	if len(sessionRepo.created) != 1 {
		t.Errorf("expected 1 session created, got %d", len(sessionRepo.created))
	}
	if len(adminRepo.lastLoginUpdates) != 1 {
		t.Errorf("expected last login update, got %d calls", len(adminRepo.lastLoginUpdates))
	}

	snapshot := gate.Snapshot()
	if snapshot.State != model.GateAuthenticated {
		t.Errorf("expected state %s, got %s", model.GateAuthenticated, snapshot.State)
	}
	if !snapshot.Authenticated {
		t.Error("expected authenticated")
	}
	if snapshot.Admin == nil || snapshot.Admin.Email != "admin@example.com" {
		t.Error("expected admin in snapshot")
	}
}

// 資格情報が拒否された場合、INVALID_CREDENTIALSエラーが返されることを検証
func TestGate_SignIn_InvalidCredentials(t *testing.T) {
	provider := &mockProvider{
		SignInWithPasswordFunc: func(ctx context.Context, email, password string) (*identity.ProviderSession, error) {
			return nil, identity.ErrInvalidCredentials
		},
	}
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			t.Error("authorization should not run when credentials are rejected")
			return nil, nil
		},
	}

	gate := newTestGate(provider, adminRepo, &mockSessionRepo{})
	before := gate.Snapshot().State
	_, err := gate.SignIn(context.Background(), "admin@example.com", "wrong")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
	if got := gate.Snapshot().State; got != before {
		t.Errorf("expected state to remain %s, got %s", before, got)
	}
}

// プロバイダーに到達できない場合、PROVIDER_UNAVAILABLEエラーが返されることを検証
func TestGate_SignIn_ProviderUnavailable(t *testing.T) {
	provider := &mockProvider{
		SignInWithPasswordFunc: func(ctx context.Context, email, password string) (*identity.ProviderSession, error) {
			return nil, errors.New("connection refused")
		},
	}

	gate := newTestGate(provider, &mockAdminRepo{}, &mockSessionRepo{})
	before := gate.Snapshot().State
	_, err := gate.SignIn(context.Background(), "admin@example.com", "secret")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProviderUnavailable {
		t.Fatalf("expected PROVIDER_UNAVAILABLE, got %v", err)
	}
	if got := gate.Snapshot().State; got != before {
		t.Errorf("expected state to remain %s, got %s", before, got)
	}
}

// サインイン済みのゲートが第三者の失敗したサインイン試行で
// Unauthenticatedに転落しないことを検証
func TestGate_SignIn_RejectedAttemptKeepsAuthenticatedState(t *testing.T) {
	provider := &mockProvider{
		SignInWithPasswordFunc: func(ctx context.Context, email, password string) (*identity.ProviderSession, error) {
			if password != "secret" {
				return nil, identity.ErrInvalidCredentials
			}
			return &identity.ProviderSession{AccessToken: "provider-token", Email: email}, nil
		},
	}
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			return activeAdmin(email), nil
		},
	}

	gate := newTestGate(provider, adminRepo, &mockSessionRepo{})
	if _, err := gate.SignIn(context.Background(), "admin@example.com", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := gate.SignIn(context.Background(), "intruder@example.com", "wrong")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}

	snapshot := gate.Snapshot()
	if snapshot.State != model.GateAuthenticated {
		t.Errorf("expected state to remain %s, got %s", model.GateAuthenticated, snapshot.State)
	}
	if snapshot.Admin == nil || snapshot.Admin.Email != "admin@example.com" {
		t.Error("expected original admin to remain in snapshot")
	}
}

// 管理者レコードが存在しない場合、プロバイダー側セッションが失効されることを検証
func TestGate_SignIn_NotAuthorizedRevokesProviderSession(t *testing.T) {
	provider := &mockProvider{
		SignInWithPasswordFunc: func(ctx context.Context, email, password string) (*identity.ProviderSession, error) {
			return &identity.ProviderSession{AccessToken: "issued-token", Email: email}, nil
		},
	}
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			return nil, nil
		},
	}
	sessionRepo := &mockSessionRepo{}

	gate := newTestGate(provider, adminRepo, sessionRepo)
	_, err := gate.SignIn(context.Background(), "stranger@example.com", "secret")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotAuthorized {
		t.Fatalf("expected NOT_AUTHORIZED, got %v", err)
	}
	if len(provider.signOutCalls) != 1 || provider.signOutCalls[0] != "issued-token" {
		t.Errorf("expected provider session revocation with issued token, got %v", provider.signOutCalls)
	}
	if len(sessionRepo.created) != 0 {
		t.Error("expected no local session for unauthorized user")
	}
	if gate.Snapshot().State != model.GateUnauthenticated {
		t.Errorf("expected unauthenticated state, got %s", gate.Snapshot().State)
	}
}

// 無効化済みアカウントでのサインインが拒否されることを検証
func TestGate_SignIn_DeactivatedAccount(t *testing.T) {
	provider := &mockProvider{
		SignInWithPasswordFunc: func(ctx context.Context, email, password string) (*identity.ProviderSession, error) {
			return &identity.ProviderSession{AccessToken: "issued-token", Email: email}, nil
		},
	}
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			admin := activeAdmin(email)
			admin.IsActive = false
			return admin, nil
		},
	}

	gate := newTestGate(provider, adminRepo, &mockSessionRepo{})
	_, err := gate.SignIn(context.Background(), "admin@example.com", "secret")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAccountDeactivated {
		t.Fatalf("expected ACCOUNT_DEACTIVATED, got %v", err)
	}
	if len(provider.signOutCalls) != 1 {
		t.Errorf("expected provider session revocation, got %d calls", len(provider.signOutCalls))
	}
}

// 最終ログイン日時の更新失敗がサインインを妨げないことを検証
func TestGate_SignIn_LastLoginUpdateFailureIsNonFatal(t *testing.T) {
	provider := &mockProvider{
		SignInWithPasswordFunc: func(ctx context.Context, email, password string) (*identity.ProviderSession, error) {
			return &identity.ProviderSession{AccessToken: "token", Email: email}, nil
		},
	}
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			return activeAdmin(email), nil
		},
		UpdateLastLoginFunc: func(ctx context.Context, email string, at time.Time) error {
			return errors.New("write timeout")
		},
	}

	gate := newTestGate(provider, adminRepo, &mockSessionRepo{})
	session, err := gate.SignIn(context.Background(), "admin@example.com", "secret")
	if err != nil {
		t.Fatalf("expected sign-in to succeed despite update failure, got %v", err)
	}
	if session == nil {
		t.Fatal("expected session")
	}
	if gate.Snapshot().State != model.GateAuthenticated {
		t.Errorf("expected authenticated state, got %s", gate.Snapshot().State)
	}
}

// サインアウトがセッションを破棄し、プロバイダー側も失効させることを検証
func TestGate_SignOut(t *testing.T) {
	provider := &mockProvider{}
	sessionRepo := &mockSessionRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, AdminEmail: "admin@example.com", ProviderToken: "token"}, nil
		},
	}

	gate := newTestGate(provider, &mockAdminRepo{}, sessionRepo)
	gate.SignOut(context.Background(), "session-1")

	if len(sessionRepo.deleted) != 1 || sessionRepo.deleted[0] != "session-1" {
		t.Errorf("expected session deletion, got %v", sessionRepo.deleted)
	}
	if len(provider.signOutCalls) != 1 || provider.signOutCalls[0] != "token" {
		t.Errorf("expected provider revocation, got %v", provider.signOutCalls)
	}
	if gate.Snapshot().State != model.GateUnauthenticated {
		t.Errorf("expected unauthenticated state, got %s", gate.Snapshot().State)
	}
}

// セッションが存在しない場合でもサインアウトが冪等に完了することを検証
func TestGate_SignOut_Idempotent(t *testing.T) {
	provider := &mockProvider{}
	gate := newTestGate(provider, &mockAdminRepo{}, &mockSessionRepo{})

	gate.SignOut(context.Background(), "")
	gate.SignOut(context.Background(), "unknown-session")
	gate.SignOut(context.Background(), "unknown-session")

	if len(provider.signOutCalls) != 0 {
		t.Errorf("expected no provider calls for missing sessions, got %d", len(provider.signOutCalls))
	}
	if gate.Snapshot().State != model.GateUnauthenticated {
		t.Errorf("expected unauthenticated state, got %s", gate.Snapshot().State)
	}
}

// セッション削除の失敗がサインアウトを妨げないことを検証
func TestGate_SignOut_DeleteFailureStillResolvesUnauthenticated(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, AdminEmail: "admin@example.com", ProviderToken: "token"}, nil
		},
		DeleteByIDFunc: func(ctx context.Context, id string) error {
			return errors.New("connection lost")
		},
	}

	gate := newTestGate(&mockProvider{}, &mockAdminRepo{}, sessionRepo)
	gate.SignOut(context.Background(), "session-1")

	if gate.Snapshot().State != model.GateUnauthenticated {
		t.Errorf("expected unauthenticated state, got %s", gate.Snapshot().State)
	}
}

// セッションが存在しない場合の初期化がUnauthenticatedに解決されることを検証
func TestGate_Initialize_NoSession(t *testing.T) {
	gate := newTestGate(&mockProvider{}, &mockAdminRepo{}, &mockSessionRepo{})
	gate.Initialize(context.Background())

	snapshot := gate.Snapshot()
	if snapshot.State != model.GateUnauthenticated {
		t.Errorf("expected unauthenticated state, got %s", snapshot.State)
	}
}

// 有効なセッションと管理者が存在する場合の初期化がAuthenticatedに解決されることを検証
func TestGate_Initialize_RestoresSession(t *testing.T) {
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			return activeAdmin(email), nil
		},
	}
	sessionRepo := &mockSessionRepo{
		FindLatestFunc: func(ctx context.Context) (*model.Session, error) {
			return &model.Session{ID: "session-1", AdminEmail: "admin@example.com", ProviderToken: "token"}, nil
		},
	}

	gate := newTestGate(&mockProvider{}, adminRepo, sessionRepo)
	gate.Initialize(context.Background())

	snapshot := gate.Snapshot()
	if snapshot.State != model.GateAuthenticated {
		t.Errorf("expected authenticated state, got %s", snapshot.State)
	}
	if snapshot.Admin == nil || snapshot.Admin.Email != "admin@example.com" {
		t.Error("expected restored admin in snapshot")
	}
}

// 認可を失ったセッションが初期化時に破棄されることを検証
func TestGate_Initialize_DiscardsUnauthorizedSession(t *testing.T) {
	provider := &mockProvider{}
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			return nil, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		FindLatestFunc: func(ctx context.Context) (*model.Session, error) {
			return &model.Session{ID: "stale", AdminEmail: "removed@example.com", ProviderToken: "stale-token"}, nil
		},
	}

	gate := newTestGate(provider, adminRepo, sessionRepo)
	gate.Initialize(context.Background())

	if gate.Snapshot().State != model.GateUnauthenticated {
		t.Errorf("expected unauthenticated state, got %s", gate.Snapshot().State)
	}
	if len(sessionRepo.deleted) != 1 || sessionRepo.deleted[0] != "stale" {
		t.Errorf("expected stale session deletion, got %v", sessionRepo.deleted)
	}
	if len(provider.signOutCalls) != 1 || provider.signOutCalls[0] != "stale-token" {
		t.Errorf("expected stale provider token revocation, got %v", provider.signOutCalls)
	}
}

// 復元時のデータベースエラーがUnauthenticatedに解決されることを検証
func TestGate_Initialize_ErrorResolvesUnauthenticated(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		FindLatestFunc: func(ctx context.Context) (*model.Session, error) {
			return nil, errors.New("database down")
		},
	}

	gate := newTestGate(&mockProvider{}, &mockAdminRepo{}, sessionRepo)
	gate.Initialize(context.Background())

	if gate.Snapshot().State != model.GateUnauthenticated {
		t.Errorf("expected unauthenticated state, got %s", gate.Snapshot().State)
	}
}

// VerifySessionが有効なセッションに対して管理者を返すことを検証
func TestGate_VerifySession_Active(t *testing.T) {
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			return activeAdmin(email), nil
		},
	}
	sessionRepo := &mockSessionRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, AdminEmail: "admin@example.com"}, nil
		},
	}

	gate := newTestGate(&mockProvider{}, adminRepo, sessionRepo)
	admin, err := gate.VerifySession(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admin.Email != "admin@example.com" {
		t.Errorf("expected admin email, got %q", admin.Email)
	}
}

// セッションIDが空または無効な場合にUNAUTHORIZEDが返されることを検証
func TestGate_VerifySession_MissingSession(t *testing.T) {
	gate := newTestGate(&mockProvider{}, &mockAdminRepo{}, &mockSessionRepo{})

	for _, sessionID := range []string{"", "expired-or-unknown"} {
		_, err := gate.VerifySession(context.Background(), sessionID)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
			t.Errorf("session %q: expected UNAUTHORIZED, got %v", sessionID, err)
		}
	}
}

// サインイン後に無効化されたアカウントがVerifySessionで検出されることを検証
func TestGate_VerifySession_DeactivatedAfterSignIn(t *testing.T) {
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			admin := activeAdmin(email)
			admin.IsActive = false
			return admin, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, AdminEmail: "admin@example.com"}, nil
		},
	}

	gate := newTestGate(&mockProvider{}, adminRepo, sessionRepo)
	_, err := gate.VerifySession(context.Background(), "session-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAccountDeactivated {
		t.Fatalf("expected ACCOUNT_DEACTIVATED, got %v", err)
	}
}

// 管理者レコードが削除されたセッションがNOT_AUTHORIZEDになることを検証
func TestGate_VerifySession_AdminRemoved(t *testing.T) {
	adminRepo := &mockAdminRepo{
		FindByEmailFunc: func(ctx context.Context, email string) (*model.AdminIdentity, error) {
			return nil, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, AdminEmail: "removed@example.com"}, nil
		},
	}

	gate := newTestGate(&mockProvider{}, adminRepo, sessionRepo)
	_, err := gate.VerifySession(context.Background(), "session-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotAuthorized {
		t.Fatalf("expected NOT_AUTHORIZED, got %v", err)
	}
}
