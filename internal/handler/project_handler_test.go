package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/project"
)

// mockProjectService はテスト用のProjectServiceInterfaceモック。
type mockProjectService struct {
	ListPublishedFunc       func(ctx context.Context) ([]*model.Project, error)
	ListAllFunc             func(ctx context.Context) ([]*model.Project, error)
	GetFunc                 func(ctx context.Context, id string) (*model.Project, error)
	CreateFunc              func(ctx context.Context, input project.Input) (*model.Project, error)
	UpdateFunc              func(ctx context.Context, id string, input project.Input) (*model.Project, error)
	DeleteFunc              func(ctx context.Context, id string) error
	RefreshPreviewImageFunc func(ctx context.Context, id string) (string, error)
}

func (m *mockProjectService) ListPublished(ctx context.Context) ([]*model.Project, error) {
	return m.ListPublishedFunc(ctx)
}
func (m *mockProjectService) ListAll(ctx context.Context) ([]*model.Project, error) {
	return m.ListAllFunc(ctx)
}
func (m *mockProjectService) Get(ctx context.Context, id string) (*model.Project, error) {
	return m.GetFunc(ctx, id)
}
func (m *mockProjectService) Create(ctx context.Context, input project.Input) (*model.Project, error) {
	return m.CreateFunc(ctx, input)
}
func (m *mockProjectService) Update(ctx context.Context, id string, input project.Input) (*model.Project, error) {
	return m.UpdateFunc(ctx, id, input)
}
func (m *mockProjectService) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}
func (m *mockProjectService) RefreshPreviewImage(ctx context.Context, id string) (string, error) {
	return m.RefreshPreviewImageFunc(ctx, id)
}

// newProjectRequest はchiのURLパラメータを含むリクエストを生成する。
func newProjectRequest(method, target, id, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}

func TestProjectHandler_ListPublished(t *testing.T) {
	service := &mockProjectService{
		ListPublishedFunc: func(ctx context.Context) ([]*model.Project, error) {
			return []*model.Project{
				{ID: "p-1", Title: "ポートフォリオサイト", Published: true, StarCount: 42},
			}, nil
		},
	}
	h := NewProjectHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	w := httptest.NewRecorder()

	h.ListPublished(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	var res []projectResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected 1 project, got %d", len(res))
	}
	if res[0].StarCount != 42 {
		t.Errorf("star_count = %d, want 42", res[0].StarCount)
	}
}

func TestProjectHandler_ListPublished_EmptyReturnsArray(t *testing.T) {
	service := &mockProjectService{
		ListPublishedFunc: func(ctx context.Context) ([]*model.Project, error) {
			return nil, nil
		},
	}
	h := NewProjectHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	w := httptest.NewRecorder()

	h.ListPublished(w, req)

	// nullではなく空配列を返すこと
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestProjectHandler_Create(t *testing.T) {
	var gotInput project.Input
	service := &mockProjectService{
		CreateFunc: func(ctx context.Context, input project.Input) (*model.Project, error) {
			gotInput = input
			return &model.Project{ID: "p-1", Title: input.Title}, nil
		},
	}
	h := NewProjectHandler(service)

	body := `{"title":"新しいプロジェクト","summary":"概要","repo_url":"https://github.com/hitoshi/folio","published":true}`
	req := newProjectRequest(http.MethodPost, "/api/admin/projects", "", body)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Result().StatusCode)
	}
	if gotInput.Title != "新しいプロジェクト" {
		t.Errorf("title = %s", gotInput.Title)
	}
	if !gotInput.Published {
		t.Error("published should be true")
	}
}

func TestProjectHandler_Create_InvalidJSON_Returns400(t *testing.T) {
	service := &mockProjectService{
		CreateFunc: func(ctx context.Context, input project.Input) (*model.Project, error) {
			t.Fatal("Create should not be called")
			return nil, nil
		},
	}
	h := NewProjectHandler(service)

	req := newProjectRequest(http.MethodPost, "/api/admin/projects", "", "not json")
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
}

func TestProjectHandler_Create_ValidationError_Returns400(t *testing.T) {
	service := &mockProjectService{
		CreateFunc: func(ctx context.Context, input project.Input) (*model.Project, error) {
			return nil, model.NewInvalidRequestError("タイトルは必須です")
		},
	}
	h := NewProjectHandler(service)

	req := newProjectRequest(http.MethodPost, "/api/admin/projects", "", `{"title":""}`)
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
}

func TestProjectHandler_Update_NotFound_Returns404(t *testing.T) {
	service := &mockProjectService{
		UpdateFunc: func(ctx context.Context, id string, input project.Input) (*model.Project, error) {
			return nil, model.NewProjectNotFoundError(id)
		},
	}
	h := NewProjectHandler(service)

	req := newProjectRequest(http.MethodPut, "/api/admin/projects/missing", "missing", `{"title":"t"}`)
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Result().StatusCode)
	}
}

func TestProjectHandler_Delete(t *testing.T) {
	var deletedID string
	service := &mockProjectService{
		DeleteFunc: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	h := NewProjectHandler(service)

	req := newProjectRequest(http.MethodDelete, "/api/admin/projects/p-1", "p-1", "")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Result().StatusCode)
	}
	if deletedID != "p-1" {
		t.Errorf("deleted id = %s, want p-1", deletedID)
	}
}

func TestProjectHandler_RefreshPreviewImage(t *testing.T) {
	service := &mockProjectService{
		RefreshPreviewImageFunc: func(ctx context.Context, id string) (string, error) {
			return "https://cdn.example.com/previews/p-1.jpg", nil
		},
	}
	h := NewProjectHandler(service)

	req := newProjectRequest(http.MethodPost, "/api/admin/projects/p-1/preview-image", "p-1", "")
	w := httptest.NewRecorder()

	h.RefreshPreviewImage(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	var res map[string]string
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if res["image_url"] != "https://cdn.example.com/previews/p-1.jpg" {
		t.Errorf("image_url = %s", res["image_url"])
	}
}

func TestProjectHandler_RefreshPreviewImage_NoLiveURL_Returns400(t *testing.T) {
	service := &mockProjectService{
		RefreshPreviewImageFunc: func(ctx context.Context, id string) (string, error) {
			return "", model.NewInvalidRequestError("公開URLが設定されていません")
		},
	}
	h := NewProjectHandler(service)

	req := newProjectRequest(http.MethodPost, "/api/admin/projects/p-1/preview-image", "p-1", "")
	w := httptest.NewRecorder()

	h.RefreshPreviewImage(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
}
