// Package storage はオブジェクトストレージへのアップロードを提供する。
// 直接PUTと署名付きURL経由のPUTの2つの戦略を実装する。
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PutError はストレージへの直接PUTの失敗を表す。
type PutError struct {
	Err error
}

func (e *PutError) Error() string {
	return fmt.Sprintf("failed to put object: %v", e.Err)
}

func (e *PutError) Unwrap() error { return e.Err }

// SignURLError は署名付きURLの取得失敗を表す。
// 転送そのものはまだ始まっていない。
type SignURLError struct {
	Err error
}

func (e *SignURLError) Error() string {
	return fmt.Sprintf("failed to sign upload URL: %v", e.Err)
}

func (e *SignURLError) Unwrap() error { return e.Err }

// TransferError は署名付きURLへの転送失敗を表す。
// StatusCodeが0の場合はネットワークレベルの失敗。
type TransferError struct {
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload transfer failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("upload transfer failed: %v", e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Uploader はオブジェクトストレージへのアップロード戦略のインターフェース。
type Uploader interface {
	// Upload はオブジェクトをアップロードし、公開URLを返す。
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ObjectKey は衝突しないオブジェクトキーを生成する。
// 形式: {folder}/{ミリ秒エポック}-{uuid先頭8文字}{元ファイルの拡張子}
// 元ファイル名そのものはキーに含めない（文字種・長さの問題を避ける）。
func ObjectKey(folder, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%s/%d-%s%s",
		strings.Trim(folder, "/"),
		time.Now().UnixMilli(),
		uuid.New().String()[:8],
		ext,
	)
}

// publicURL は公開ベースURLとオブジェクトキーから公開URLを組み立てる。
func publicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}
