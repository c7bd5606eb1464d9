package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

// mockPutter はテスト用のObjectPutterモック。
type mockPutter struct {
	PutObjectFunc func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)

	puts []string
}

func (m *mockPutter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	m.puts = append(m.puts, objectName)
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, bucketName, objectName, reader, objectSize, opts)
	}
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

// mockSigner はテスト用のPutURLSignerモック。
type mockSigner struct {
	PresignedPutObjectFunc func(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
}

func (m *mockSigner) PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error) {
	return m.PresignedPutObjectFunc(ctx, bucketName, objectName, expires)
}

// オブジェクトキーの形式を検証
func TestObjectKey_Format(t *testing.T) {
	key := ObjectKey("projects", "My Photo.JPG")

	pattern := regexp.MustCompile(`^projects/\d+-[0-9a-f]{8}\.jpg$`)
	if !pattern.MatchString(key) {
		t.Errorf("unexpected key format: %s", key)
	}
}

// オブジェクトキーが毎回異なることを検証
func TestObjectKey_Unique(t *testing.T) {
	a := ObjectKey("projects", "photo.png")
	b := ObjectKey("projects", "photo.png")
	if a == b {
		t.Errorf("expected unique keys, got %s twice", a)
	}
}

// 拡張子のないファイル名でもキーが生成されることを検証
func TestObjectKey_NoExtension(t *testing.T) {
	key := ObjectKey("uploads", "README")
	if strings.Contains(key, ".") {
		t.Errorf("expected no extension, got %s", key)
	}
	if !strings.HasPrefix(key, "uploads/") {
		t.Errorf("expected uploads/ prefix, got %s", key)
	}
}

// 直接PUTが成功し、公開URLが返されることを検証
func TestDirectUploader_Upload(t *testing.T) {
	putter := &mockPutter{}
	uploader := NewDirectUploader(putter, "portfolio", "https://cdn.example.com")

	publicURL, err := uploader.Upload(context.Background(), "projects/123-abcd1234.jpg", []byte("image-data"), "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if publicURL != "https://cdn.example.com/projects/123-abcd1234.jpg" {
		t.Errorf("unexpected public URL: %s", publicURL)
	}
	if len(putter.puts) != 1 || putter.puts[0] != "projects/123-abcd1234.jpg" {
		t.Errorf("expected one put with object key, got %v", putter.puts)
	}
}

// 直接PUTの失敗がPutErrorとして返されることを検証
func TestDirectUploader_PutError(t *testing.T) {
	putter := &mockPutter{
		PutObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
			return minio.UploadInfo{}, errors.New("access denied")
		},
	}
	uploader := NewDirectUploader(putter, "portfolio", "https://cdn.example.com")

	_, err := uploader.Upload(context.Background(), "projects/key.jpg", []byte("data"), "image/jpeg")
	var putErr *PutError
	if !errors.As(err, &putErr) {
		t.Fatalf("expected PutError, got %v", err)
	}
}

// 署名付きURL経由のアップロードが成功することを検証
func TestSignedUploader_Upload(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	signer := &mockSigner{
		PresignedPutObjectFunc: func(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error) {
			return url.Parse(server.URL + "/" + objectName + "?signature=xyz")
		},
	}
	uploader := NewSignedUploader(signer, "portfolio", "https://cdn.example.com")

	publicURL, err := uploader.Upload(context.Background(), "projects/key.jpg", []byte("image-data"), "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("expected PUT, got %s", gotMethod)
	}
	if gotContentType != "image/jpeg" {
		t.Errorf("expected image/jpeg content type, got %s", gotContentType)
	}
	if string(gotBody) != "image-data" {
		t.Errorf("unexpected body: %s", gotBody)
	}
	if publicURL != "https://cdn.example.com/projects/key.jpg" {
		t.Errorf("unexpected public URL: %s", publicURL)
	}
}

// 署名の取得失敗がSignURLErrorとして返されることを検証
func TestSignedUploader_SignURLError(t *testing.T) {
	signer := &mockSigner{
		PresignedPutObjectFunc: func(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error) {
			return nil, errors.New("credentials expired")
		},
	}
	uploader := NewSignedUploader(signer, "portfolio", "https://cdn.example.com")

	_, err := uploader.Upload(context.Background(), "projects/key.jpg", []byte("data"), "image/jpeg")
	var signErr *SignURLError
	if !errors.As(err, &signErr) {
		t.Fatalf("expected SignURLError, got %v", err)
	}
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		t.Error("sign failure must not be reported as transfer failure")
	}
}

// 転送先が拒否した場合、ステータスコード付きのTransferErrorが返されることを検証
func TestSignedUploader_TransferErrorWithStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	signer := &mockSigner{
		PresignedPutObjectFunc: func(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error) {
			return url.Parse(server.URL + "/" + objectName)
		},
	}
	uploader := NewSignedUploader(signer, "portfolio", "https://cdn.example.com")

	_, err := uploader.Upload(context.Background(), "projects/key.jpg", []byte("data"), "image/jpeg")
	var transferErr *TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	if transferErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", transferErr.StatusCode)
	}
}

// 転送先に到達できない場合、ステータスコード0のTransferErrorが返されることを検証
func TestSignedUploader_TransferErrorNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	signer := &mockSigner{
		PresignedPutObjectFunc: func(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error) {
			return url.Parse(server.URL + "/" + objectName)
		},
	}
	uploader := NewSignedUploader(signer, "portfolio", "https://cdn.example.com")

	_, err := uploader.Upload(context.Background(), "projects/key.jpg", []byte("data"), "image/jpeg")
	var transferErr *TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	if transferErr.StatusCode != 0 {
		t.Errorf("expected status 0 for network failure, got %d", transferErr.StatusCode)
	}
}
