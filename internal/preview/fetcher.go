// Package preview はプロジェクトURLからプレビュー画像を検出・取得する機能を提供する。
// ページのhead内のog:image等のメタデータを解析し、画像を安全にダウンロードする。
package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// maxPageSize はHTMLページの最大読み込みサイズ（5MB）。
const maxPageSize = 5 * 1024 * 1024

// maxImageSize はプレビュー画像の最大サイズ（10MB）。圧縮前の上限。
const maxImageSize = 10 * 1024 * 1024

// fetchTimeout は外部サイトへのリクエストのタイムアウト。
const fetchTimeout = 10 * time.Second

// userAgent は外部サイトへのリクエストで名乗るUA。
const userAgent = "Folio/1.0 Portfolio Bot"

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// ImageCandidate はHTMLから検出されたプレビュー画像候補を表す。
type ImageCandidate struct {
	URL    string
	Source string // "og:image", "twitter:image", "icon" 等の検出元
}

// Fetcher はプレビュー画像の検出とダウンロードを提供する。
type Fetcher struct {
	ssrfGuard SSRFValidator
	// テスト用にオーバーライド可能なHTTPクライアント
	httpClient *http.Client
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator) *Fetcher {
	return &Fetcher{ssrfGuard: ssrfGuard}
}

// NewFetcherWithClient はHTTPクライアントを指定してFetcherを生成する。
// SSRF防止付きクライアントを使わないため、テスト専用。
func NewFetcherWithClient(ssrfGuard SSRFValidator, client *http.Client) *Fetcher {
	return &Fetcher{ssrfGuard: ssrfGuard, httpClient: client}
}

// FetchPreviewImage はページURLからプレビュー画像を検出し、ダウンロードして返す。
// 画像が検出できない、または取得に失敗した場合はnilデータと空MIMEを返す
// （プレビュー画像はベストエフォートであり、エラーにはしない）。
func (f *Fetcher) FetchPreviewImage(ctx context.Context, pageURL string) (data []byte, mimeType string, err error) {
	imageURL, err := f.DetectImageURL(ctx, pageURL)
	if err != nil {
		slog.Warn("preview image detection failed", slog.String("url", pageURL), slog.String("error", err.Error()))
		return nil, "", nil
	}
	if imageURL == "" {
		return nil, "", nil
	}
	return f.downloadImage(ctx, imageURL)
}

// DetectImageURL はページURLからプレビュー画像のURLを検出する。
// 1. SSRF検証を実行
// 2. ページを取得。レスポンスが画像そのものならそのURLを返す
// 3. HTMLの場合はheadタグから画像候補を検出し、優先順位で選択
// 4. 候補がない場合は空文字列を返す
func (f *Fetcher) DetectImageURL(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", fmt.Errorf("empty page URL")
	}

	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(pageURL); err != nil {
			return "", fmt.Errorf("blocked page URL: %w", err)
		}
	}

	client := f.getHTTPClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, image/*, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	mediaType = strings.ToLower(mediaType)

	// URLが画像そのものを指している場合
	if strings.HasPrefix(mediaType, "image/") {
		return pageURL, nil
	}

	if !strings.Contains(mediaType, "html") {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}

	candidates := ParseImageCandidates(body, pageURL)
	best := SelectBestCandidate(candidates)
	if best == nil {
		return "", nil
	}
	return best.URL, nil
}

// ParseImageCandidates はHTMLのheadタグからプレビュー画像候補を解析・検出する。
// og:image、twitter:imageのmetaタグとrel="icon"系のlinkタグを対象とし、
// 相対URLはbaseURLを基準に絶対URLに解決される。
func ParseImageCandidates(htmlBody []byte, baseURL string) []ImageCandidate {
	var candidates []ImageCandidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}
			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return candidates
			}
			if !inHead || !hasAttr {
				continue
			}

			switch tagName {
			case "meta":
				var property, name, content string
				for {
					key, val, more := tokenizer.TagAttr()
					switch strings.ToLower(string(key)) {
					case "property":
						property = strings.ToLower(string(val))
					case "name":
						name = strings.ToLower(string(val))
					case "content":
						content = string(val)
					}
					if !more {
						break
					}
				}
				if content == "" {
					continue
				}

				var source string
				switch {
				case property == "og:image" || property == "og:image:url":
					source = "og:image"
				case name == "twitter:image" || name == "twitter:image:src":
					source = "twitter:image"
				default:
					continue
				}
				if resolved := resolveURL(baseU, content); resolved != "" {
					candidates = append(candidates, ImageCandidate{URL: resolved, Source: source})
				}

			case "link":
				var rel, href string
				for {
					key, val, more := tokenizer.TagAttr()
					switch strings.ToLower(string(key)) {
					case "rel":
						rel = strings.ToLower(string(val))
					case "href":
						href = string(val)
					}
					if !more {
						break
					}
				}
				if href == "" {
					continue
				}
				if rel != "icon" && rel != "shortcut icon" && rel != "apple-touch-icon" && rel != "image_src" {
					continue
				}
				source := "icon"
				if rel == "image_src" {
					source = "image_src"
				}
				if resolved := resolveURL(baseU, href); resolved != "" {
					candidates = append(candidates, ImageCandidate{URL: resolved, Source: source})
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// SelectBestCandidate は複数の画像候補から優先順位に従って最適な候補を選択する。
// 優先順位: og:image > twitter:image > image_src > icon。同順位は先頭優先。
func SelectBestCandidate(candidates []ImageCandidate) *ImageCandidate {
	if len(candidates) == 0 {
		return nil
	}

	bestIdx := 0
	bestScore := -1
	for i, c := range candidates {
		score := 0
		switch c.Source {
		case "og:image":
			score = 100
		case "twitter:image":
			score = 50
		case "image_src":
			score = 20
		case "icon":
			score = 10
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return &candidates[bestIdx]
}

// downloadImage は画像URLから画像データを取得する。
// 取得失敗、サイズ超過、画像以外のContent-Typeの場合はnilデータを返す（エラーにしない）。
func (f *Fetcher) downloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(imageURL); err != nil {
			slog.Warn("preview image URL blocked", slog.String("url", imageURL), slog.String("error", err.Error()))
			return nil, "", nil
		}
	}

	client := f.getHTTPClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		slog.Warn("preview image request failed", slog.String("url", imageURL), slog.String("error", err.Error()))
		return nil, "", nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("preview image fetch failed", slog.String("url", imageURL), slog.String("error", err.Error()))
		return nil, "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("preview image fetch returned error status",
			slog.String("url", imageURL), slog.Int("status", resp.StatusCode))
		return nil, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		slog.Warn("preview image read failed", slog.String("url", imageURL), slog.String("error", err.Error()))
		return nil, "", nil
	}
	if int64(len(body)) > maxImageSize {
		slog.Warn("preview image too large", slog.String("url", imageURL), slog.Int("size", len(body)))
		return nil, "", nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	mediaType = strings.ToLower(mediaType)
	if !strings.HasPrefix(mediaType, "image/") {
		slog.Warn("preview image has non-image content type",
			slog.String("url", imageURL), slog.String("contentType", mediaType))
		return nil, "", nil
	}

	return body, mediaType, nil
}

// getHTTPClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (f *Fetcher) getHTTPClient() *http.Client {
	if f.httpClient != nil {
		return f.httpClient
	}
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(fetchTimeout, maxPageSize)
	}
	return &http.Client{Timeout: fetchTimeout}
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
