package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPProviderConfig はHTTPProviderの設定。
type HTTPProviderConfig struct {
	// BaseURL はプロバイダーのベースURL（例: "https://auth.example.com"）。
	BaseURL string
	// APIKey はプロバイダーのAPIキー。空の場合はヘッダーを送信しない。
	APIKey string

	// テスト用にオーバーライド可能なHTTPクライアント
	HTTPClient *http.Client
}

// HTTPProvider はREST APIを公開するホスト型IDプロバイダーのクライアント実装。
// パスワードグラントのトークンエンドポイントとログアウトエンドポイントを使用する。
type HTTPProvider struct {
	config HTTPProviderConfig
}

// NewHTTPProvider はHTTPProviderを生成する。
func NewHTTPProvider(config HTTPProviderConfig) *HTTPProvider {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &HTTPProvider{config: config}
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignInWithPassword はパスワードグラントで認証し、セッションを発行する。
// 400/401/403/422は資格情報の拒否として扱い、ErrInvalidCredentialsを返す。
// それ以外の失敗はプロバイダー到達不能としてエラーをラップして返す。
func (p *HTTPProvider) SignInWithPassword(ctx context.Context, email, password string) (*ProviderSession, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign-in request: %w", err)
	}

	url := p.config.BaseURL + "/token?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("apikey", p.config.APIKey)
	}

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign-in request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sign-in response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("sign-in failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse sign-in response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in sign-in response")
	}

	return &ProviderSession{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresIn:    tokenResp.ExpiresIn,
		UserID:       tokenResp.User.ID,
		Email:        tokenResp.User.Email,
	}, nil
}

// SignOut は指定アクセストークンのプロバイダー側セッションを失効させる。
// 401（既に失効済み）は成功として扱う。
func (p *HTTPProvider) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}

	url := p.config.BaseURL + "/logout"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create sign-out request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if p.config.APIKey != "" {
		req.Header.Set("apikey", p.config.APIKey)
	}

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sign-out request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// トークンが既に無効 = セッションは存在しない
		return nil
	}
	return fmt.Errorf("sign-out failed with status %d", resp.StatusCode)
}

// compile-time interface check
var _ Provider = (*HTTPProvider)(nil)
