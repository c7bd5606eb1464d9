// Package upload は画像の圧縮とストレージへのアップロードを組み合わせた
// アップロードパイプラインを提供する。
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/folio/internal/imaging"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/storage"
)

// ServiceConfig はアップロードサービスの設定。
type ServiceConfig struct {
	MaxSizeKB int     // 圧縮の目標サイズ（KB）
	Quality   float64 // JPEG圧縮の初期品質
}

// Result はアップロードの結果を表す。
type Result struct {
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"sizeBytes"`
	// Warning は処理は成功したが注意が必要な場合の警告コード。
	// 目標サイズ未達のベストエフォート結果ではSIZE_BUDGET_UNMETが入る。
	Warning string `json:"warning,omitempty"`
}

// Service は圧縮とアップロードのパイプラインを提供する。
type Service struct {
	uploader storage.Uploader
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(uploader storage.Uploader, config ServiceConfig) *Service {
	return &Service{uploader: uploader, config: config}
}

// UploadImage は画像を圧縮してストレージへアップロードし、公開URLを返す。
// 圧縮が目標サイズを満たせなかった場合もアップロードは行い、
// 結果のWarningフィールドで通知する。
func (s *Service) UploadImage(ctx context.Context, folder string, file imaging.SourceFile) (*Result, error) {
	compressed, err := imaging.Compress(ctx, file, imaging.Options{
		MaxSizeKB: s.config.MaxSizeKB,
		Quality:   s.config.Quality,
	})
	if err != nil {
		var decodeErr *imaging.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, model.NewImageDecodeError()
		}
		var encodeErr *imaging.EncodeError
		if errors.As(err, &encodeErr) {
			return nil, model.NewImageEncodeError()
		}
		return nil, fmt.Errorf("failed to compress image: %w", err)
	}

	if !compressed.BudgetMet {
		slog.Warn("image exceeds size budget after compression",
			slog.String("file", file.Name),
			slog.Int("size_bytes", len(compressed.Data)),
			slog.Int("budget_kb", s.config.MaxSizeKB),
			slog.Int("iterations", compressed.Iterations),
		)
	}

	key := storage.ObjectKey(folder, file.Name)
	url, err := s.uploader.Upload(ctx, key, compressed.Data, compressed.MIME)
	if err != nil {
		var transferErr *storage.TransferError
		if errors.As(err, &transferErr) {
			return nil, model.NewUploadTransferFailedError(transferErr.StatusCode)
		}
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	slog.Info("image uploaded",
		slog.String("key", key),
		slog.Int("width", compressed.Width),
		slog.Int("height", compressed.Height),
		slog.Int("size_bytes", len(compressed.Data)),
		slog.Int("iterations", compressed.Iterations),
	)

	result := &Result{
		URL:       url,
		Width:     compressed.Width,
		Height:    compressed.Height,
		SizeBytes: len(compressed.Data),
	}
	if !compressed.BudgetMet {
		result.Warning = model.WarnCodeSizeBudgetUnmet
	}
	return result, nil
}
