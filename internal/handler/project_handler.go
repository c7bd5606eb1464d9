package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/project"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	// ListPublished は公開中のプロジェクトを表示順で返す。
	ListPublished(ctx context.Context) ([]*model.Project, error)
	// ListAll は非公開を含む全プロジェクトを表示順で返す。
	ListAll(ctx context.Context) ([]*model.Project, error)
	// Get はIDでプロジェクトを取得する。
	Get(ctx context.Context, id string) (*model.Project, error)
	// Create は新しいプロジェクトを作成する。
	Create(ctx context.Context, input project.Input) (*model.Project, error)
	// Update は既存のプロジェクトを更新する。
	Update(ctx context.Context, id string, input project.Input) (*model.Project, error)
	// Delete はプロジェクトを削除する。
	Delete(ctx context.Context, id string) error
	// RefreshPreviewImage は公開URLからプレビュー画像を再取得する。
	RefreshPreviewImage(ctx context.Context, id string) (string, error)
}

// ProjectHandler はプロジェクト管理のHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// projectRequest はプロジェクト作成・更新リクエストのボディ。
type projectRequest struct {
	Title           string `json:"title"`
	Summary         string `json:"summary"`
	DescriptionHTML string `json:"description_html"`
	RepoURL         string `json:"repo_url"`
	LiveURL         string `json:"live_url"`
	DisplayOrder    int    `json:"display_order"`
	Published       bool   `json:"published"`
}

// projectResponse はプロジェクトのAPIレスポンス。
type projectResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	DescriptionHTML string    `json:"description_html"`
	RepoURL         string    `json:"repo_url"`
	LiveURL         string    `json:"live_url"`
	ImageURL        string    `json:"image_url"`
	StarCount       int       `json:"star_count"`
	DisplayOrder    int       `json:"display_order"`
	Published       bool      `json:"published"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ListPublished は公開中のプロジェクト一覧を返す。
// GET /api/projects
func (h *ProjectHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListPublished(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeProjectList(w, projects)
}

// ListAll は非公開を含む全プロジェクト一覧を返す。
// GET /api/admin/projects
func (h *ProjectHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListAll(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeProjectList(w, projects)
}

// Get はプロジェクト詳細を返す。
// GET /api/admin/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProjectResponse(p))
}

// Create はプロジェクトを作成する。
// POST /api/admin/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	p, err := h.service.Create(r.Context(), toProjectInput(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toProjectResponse(p))
}

// Update はプロジェクトを更新する。
// PUT /api/admin/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), toProjectInput(req))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProjectResponse(p))
}

// Delete はプロジェクトを削除する。
// DELETE /api/admin/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshPreviewImage は公開URLからプレビュー画像を再取得して保存する。
// POST /api/admin/projects/{id}/preview-image
func (h *ProjectHandler) RefreshPreviewImage(w http.ResponseWriter, r *http.Request) {
	imageURL, err := h.service.RefreshPreviewImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"image_url": imageURL})
}

// --- ヘルパー関数 ---

func toProjectInput(req projectRequest) project.Input {
	return project.Input{
		Title:           req.Title,
		Summary:         req.Summary,
		DescriptionHTML: req.DescriptionHTML,
		RepoURL:         req.RepoURL,
		LiveURL:         req.LiveURL,
		DisplayOrder:    req.DisplayOrder,
		Published:       req.Published,
	}
}

// toProjectResponse はmodel.ProjectからAPIレスポンスに変換する。
func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:              p.ID,
		Title:           p.Title,
		Summary:         p.Summary,
		DescriptionHTML: p.DescriptionHTML,
		RepoURL:         p.RepoURL,
		LiveURL:         p.LiveURL,
		ImageURL:        p.ImageURL,
		StarCount:       p.StarCount,
		DisplayOrder:    p.DisplayOrder,
		Published:       p.Published,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func writeProjectList(w http.ResponseWriter, projects []*model.Project) {
	res := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		res = append(res, toProjectResponse(p))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}
