package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"strings"
	"testing"

	"github.com/hitoshi/folio/internal/imaging"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/storage"
)

// mockUploader はテスト用のUploaderモック。
type mockUploader struct {
	UploadFunc func(ctx context.Context, key string, data []byte, contentType string) (string, error)

	keys []string
}

func (m *mockUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.keys = append(m.keys, key)
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, key, data, contentType)
	}
	return "https://cdn.example.com/" + key, nil
}

func testJPEG(t *testing.T, width, height int, noisy bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rng := rand.New(rand.NewSource(7))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if noisy {
				img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
			} else {
				img.Set(x, y, color.RGBA{200, 100, 50, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("failed to encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

// 圧縮してアップロードされ、公開URLが返されることを検証
func TestService_UploadImage(t *testing.T) {
	uploader := &mockUploader{}
	service := NewService(uploader, ServiceConfig{MaxSizeKB: 100, Quality: 0.8})

	file := imaging.SourceFile{Name: "photo.jpg", MIME: "image/jpeg", Data: testJPEG(t, 400, 300, false)}
	result, err := service.UploadImage(context.Background(), "projects", file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(result.URL, "https://cdn.example.com/projects/") {
		t.Errorf("unexpected URL: %s", result.URL)
	}
	if result.Width != 400 || result.Height != 300 {
		t.Errorf("expected 400x300, got %dx%d", result.Width, result.Height)
	}
	if result.Warning != "" {
		t.Errorf("expected no warning, got %s", result.Warning)
	}
	if len(uploader.keys) != 1 || !strings.HasPrefix(uploader.keys[0], "projects/") {
		t.Errorf("expected one upload under projects/, got %v", uploader.keys)
	}
}

// 目標サイズ未達の場合も成功し、警告コードが付与されることを検証
func TestService_UploadImage_BudgetUnmetWarning(t *testing.T) {
	uploader := &mockUploader{}
	service := NewService(uploader, ServiceConfig{MaxSizeKB: 1, Quality: 0.8})

	file := imaging.SourceFile{Name: "noise.jpg", MIME: "image/jpeg", Data: testJPEG(t, 700, 700, true)}
	result, err := service.UploadImage(context.Background(), "projects", file)
	if err != nil {
		t.Fatalf("expected best-effort upload, got error: %v", err)
	}

	if result.Warning != model.WarnCodeSizeBudgetUnmet {
		t.Errorf("expected warning %s, got %q", model.WarnCodeSizeBudgetUnmet, result.Warning)
	}
	if len(uploader.keys) != 1 {
		t.Errorf("expected the over-budget image to be uploaded anyway, got %d uploads", len(uploader.keys))
	}
}

// 画像でないファイルがIMAGE_DECODE_FAILEDになることを検証
func TestService_UploadImage_DecodeError(t *testing.T) {
	uploader := &mockUploader{}
	service := NewService(uploader, ServiceConfig{MaxSizeKB: 100, Quality: 0.8})

	file := imaging.SourceFile{Name: "doc.pdf", MIME: "application/pdf", Data: []byte("%PDF-1.4 not an image")}
	_, err := service.UploadImage(context.Background(), "projects", file)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeImageDecodeFailed {
		t.Fatalf("expected IMAGE_DECODE_FAILED, got %v", err)
	}
	if len(uploader.keys) != 0 {
		t.Error("expected no upload for undecodable file")
	}
}

// 転送失敗がUPLOAD_TRANSFER_FAILEDになることを検証
func TestService_UploadImage_TransferError(t *testing.T) {
	uploader := &mockUploader{
		UploadFunc: func(ctx context.Context, key string, data []byte, contentType string) (string, error) {
			return "", &storage.TransferError{StatusCode: 403}
		},
	}
	service := NewService(uploader, ServiceConfig{MaxSizeKB: 100, Quality: 0.8})

	file := imaging.SourceFile{Name: "photo.jpg", MIME: "image/jpeg", Data: testJPEG(t, 200, 200, false)}
	_, err := service.UploadImage(context.Background(), "projects", file)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUploadTransferFailed {
		t.Fatalf("expected UPLOAD_TRANSFER_FAILED, got %v", err)
	}
}

// 署名取得失敗がラップされたエラーとして返されることを検証
func TestService_UploadImage_SignURLError(t *testing.T) {
	uploader := &mockUploader{
		UploadFunc: func(ctx context.Context, key string, data []byte, contentType string) (string, error) {
			return "", &storage.SignURLError{Err: errors.New("credentials expired")}
		},
	}
	service := NewService(uploader, ServiceConfig{MaxSizeKB: 100, Quality: 0.8})

	file := imaging.SourceFile{Name: "photo.jpg", MIME: "image/jpeg", Data: testJPEG(t, 200, 200, false)}
	_, err := service.UploadImage(context.Background(), "projects", file)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUploadTransferFailed {
		t.Error("sign failure must not be reported as transfer failure")
	}
}
