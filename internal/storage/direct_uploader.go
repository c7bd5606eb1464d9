package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
)

// ObjectPutter はS3互換クライアントの直接PUT操作のインターフェース。
// *minio.Clientが満たす。テスト時にモックに差し替え可能。
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// DirectUploader はS3互換APIへの直接PUTでアップロードする戦略。
// ストレージの資格情報を保持するサーバープロセス自身が転送を行う。
type DirectUploader struct {
	client        ObjectPutter
	bucket        string
	publicBaseURL string
}

// NewDirectUploader はDirectUploaderを生成する。
func NewDirectUploader(client ObjectPutter, bucket, publicBaseURL string) *DirectUploader {
	return &DirectUploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
	}
}

// Upload はオブジェクトを直接PUTし、公開URLを返す。
func (u *DirectUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &PutError{Err: err}
	}
	return publicURL(u.publicBaseURL, key), nil
}

// compile-time interface check
var _ Uploader = (*DirectUploader)(nil)
