// Package github はGitHub連携機能を提供する。
// GitHub REST APIの呼び出しとスター数のバッチ取得ジョブを含む。
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// defaultBaseURL はGitHub REST APIのベースURL。
const defaultBaseURL = "https://api.github.com"

// Client はGitHub REST APIのクライアント。
// リポジトリ情報エンドポイントを使用してスター数を取得する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	token      string // 空の場合は未認証（レート制限60req/h）
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// tokenが空でない場合はAuthorizationヘッダーに付与する。
func NewClient(httpClient *http.Client, logger *slog.Logger, token string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		token:      token,
		baseURL:    defaultBaseURL,
	}
}

// repoResponse はリポジトリ情報エンドポイントのレスポンス。
type repoResponse struct {
	StargazersCount int `json:"stargazers_count"`
}

// GetStarCount は指定リポジトリURLのスター数を取得する。
// 取得失敗時はエラーを返す（呼び出し元が前回値維持を判断する）。
func (c *Client) GetStarCount(ctx context.Context, repoURL string) (int, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return 0, err
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create GitHub API request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "Folio/1.0 Portfolio Bot")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("GitHub APIの呼び出しに失敗しました",
			slog.String("repo", owner+"/"+repo),
			slog.String("error", err.Error()),
		)
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read GitHub API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("GitHub APIがエラーステータスを返しました",
			slog.String("repo", owner+"/"+repo),
			slog.Int("http_status", resp.StatusCode),
		)
		return 0, fmt.Errorf("GitHub API returned status %d for %s/%s", resp.StatusCode, owner, repo)
	}

	var repoInfo repoResponse
	if err := json.Unmarshal(body, &repoInfo); err != nil {
		return 0, fmt.Errorf("failed to parse GitHub API response: %w", err)
	}

	return repoInfo.StargazersCount, nil
}

// ParseRepoURL はGitHubリポジトリURLからowner/repoを抽出する。
// https://github.com/owner/repo 形式のみ対応する。
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid repository URL: %w", err)
	}
	if !strings.EqualFold(u.Hostname(), "github.com") {
		return "", "", fmt.Errorf("not a github.com URL: %s", repoURL)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository URL missing owner/repo: %s", repoURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
