// Package identity は外部IDプロバイダーとの連携を提供する。
// パスワード検証・セッション発行・失効はすべてプロバイダー側に委譲し、
// このサービス自身はパスワードハッシュやトークン発行を一切行わない。
package identity

import (
	"context"
	"errors"
)

// ErrInvalidCredentials はプロバイダーがメールアドレス/パスワードを拒否したことを表す。
// ネットワーク障害等のエラーとは区別して扱う。
var ErrInvalidCredentials = errors.New("identity provider rejected credentials")

// ProviderSession はプロバイダーが発行したセッションを表す。
// AccessTokenはサインアウト時のプロバイダー側セッション失効に使用する。
type ProviderSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	UserID       string
	Email        string
}

// Provider はIDプロバイダーのインターフェース。
// テスト時にモックに差し替え可能。
type Provider interface {
	// SignInWithPassword はメールアドレスとパスワードで認証し、セッションを発行する。
	// 資格情報が拒否された場合はErrInvalidCredentialsを返す。
	SignInWithPassword(ctx context.Context, email, password string) (*ProviderSession, error)

	// SignOut は指定アクセストークンのプロバイダー側セッションを失効させる。
	// 既に失効済みの場合もエラーにしない。
	SignOut(ctx context.Context, accessToken string) error
}
