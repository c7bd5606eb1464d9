package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

const signedURLExpiry = 15 * time.Minute

// PutURLSigner は署名付きPUT URLを発行するインターフェース。
// *minio.Clientが満たす。テスト時にモックに差し替え可能。
type PutURLSigner interface {
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
}

// SignedUploader は署名付きURLを取得してからHTTP PUTでアップロードする戦略。
// 署名の取得失敗（SignURLError）と転送の失敗（TransferError）は区別して返す。
type SignedUploader struct {
	signer        PutURLSigner
	bucket        string
	publicBaseURL string
	httpClient    *http.Client
}

// NewSignedUploader はSignedUploaderを生成する。
func NewSignedUploader(signer PutURLSigner, bucket, publicBaseURL string) *SignedUploader {
	return &SignedUploader{
		signer:        signer,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload は署名付きURLを取得し、そのURLへHTTP PUTで転送して公開URLを返す。
func (u *SignedUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	signedURL, err := u.signer.PresignedPutObject(ctx, u.bucket, key, signedURLExpiry)
	if err != nil {
		return "", &SignURLError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL.String(), bytes.NewReader(data))
	if err != nil {
		return "", &TransferError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", &TransferError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransferError{StatusCode: resp.StatusCode}
	}

	return publicURL(u.publicBaseURL, key), nil
}

// compile-time interface check
var _ Uploader = (*SignedUploader)(nil)
