package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/hitoshi/folio/internal/imaging"
	"github.com/hitoshi/folio/internal/metrics"
	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/upload"
)

// maxUploadBytes はmultipartリクエスト全体の最大サイズ。
const maxUploadBytes = 20 << 20 // 20MB

// defaultUploadFolder は未指定時の保存先フォルダ。
const defaultUploadFolder = "images"

// allowedUploadFolders は指定可能な保存先フォルダの一覧。
var allowedUploadFolders = map[string]bool{
	"images":   true,
	"projects": true,
	"previews": true,
}

// UploadServiceInterface はアップロードハンドラーが必要とするサービスインターフェース。
type UploadServiceInterface interface {
	UploadImage(ctx context.Context, folder string, file imaging.SourceFile) (*upload.Result, error)
}

// UploadHandler は画像アップロードのHTTPハンドラー。
type UploadHandler struct {
	service   UploadServiceInterface
	collector metrics.MetricsCollector
}

// NewUploadHandler はUploadHandlerを生成する。collectorはnil可。
func NewUploadHandler(service UploadServiceInterface, collector metrics.MetricsCollector) *UploadHandler {
	return &UploadHandler{
		service:   service,
		collector: collector,
	}
}

// Upload はmultipart/form-dataで送信された画像を圧縮してストレージに保存する。
// POST /api/admin/uploads
//
// フォーム: file（必須）、folder（省略時はimages）
// サイズ予算を満たせなかった場合もアップロードは成功し、
// レスポンスのwarningフィールドで通知する。
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("multipart/form-dataの解析に失敗しました"))
		return
	}

	folder := r.FormValue("folder")
	if folder == "" {
		folder = defaultUploadFolder
	}
	if !allowedUploadFolders[folder] {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("指定できないフォルダです"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("fileフィールドは必須です"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ファイルの読み取りに失敗しました"))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	result, err := h.service.UploadImage(r.Context(), folder, imaging.SourceFile{
		Name: header.Filename,
		MIME: mimeType,
		Data: data,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordUpload(result.Warning == "")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}
