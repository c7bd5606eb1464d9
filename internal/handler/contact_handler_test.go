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
)

// mockContactService はテスト用のContactServiceInterfaceモック。
type mockContactService struct {
	SubmitFunc     func(ctx context.Context, name, email, body string) (*model.ContactMessage, error)
	ListRecentFunc func(ctx context.Context, limit int) ([]*model.ContactMessage, error)
	DeleteFunc     func(ctx context.Context, id string) error
}

func (m *mockContactService) Submit(ctx context.Context, name, email, body string) (*model.ContactMessage, error) {
	return m.SubmitFunc(ctx, name, email, body)
}
func (m *mockContactService) ListRecent(ctx context.Context, limit int) ([]*model.ContactMessage, error) {
	return m.ListRecentFunc(ctx, limit)
}
func (m *mockContactService) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

func TestContactHandler_Submit(t *testing.T) {
	service := &mockContactService{
		SubmitFunc: func(ctx context.Context, name, email, body string) (*model.ContactMessage, error) {
			if name != "山田太郎" || email != "taro@example.com" {
				t.Errorf("unexpected submission: %s / %s", name, email)
			}
			return &model.ContactMessage{ID: "m-1", Name: name, Email: email, Body: body}, nil
		},
	}
	h := NewContactHandler(service)

	body := `{"name":"山田太郎","email":"taro@example.com","body":"お仕事の相談です"}`
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Result().StatusCode)
	}

	var res map[string]string
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if res["id"] != "m-1" {
		t.Errorf("id = %s, want m-1", res["id"])
	}
}

func TestContactHandler_Submit_ValidationError_Returns400(t *testing.T) {
	service := &mockContactService{
		SubmitFunc: func(ctx context.Context, name, email, body string) (*model.ContactMessage, error) {
			return nil, model.NewInvalidRequestError("名前は必須です")
		},
	}
	h := NewContactHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"email":"a@b.c","body":"x"}`))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
}

func TestContactHandler_Submit_InvalidJSON_Returns400(t *testing.T) {
	service := &mockContactService{
		SubmitFunc: func(ctx context.Context, name, email, body string) (*model.ContactMessage, error) {
			t.Fatal("Submit should not be called")
			return nil, nil
		},
	}
	h := NewContactHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader("not json"))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
}

func TestContactHandler_ListMessages(t *testing.T) {
	service := &mockContactService{
		ListRecentFunc: func(ctx context.Context, limit int) ([]*model.ContactMessage, error) {
			if limit != messageListLimit {
				t.Errorf("limit = %d, want %d", limit, messageListLimit)
			}
			return []*model.ContactMessage{
				{ID: "m-1", Name: "山田太郎", Email: "taro@example.com", Body: "相談です"},
				{ID: "m-2", Name: "佐藤花子", Email: "hanako@example.com", Body: "質問です"},
			}, nil
		},
	}
	h := NewContactHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/messages", nil)
	w := httptest.NewRecorder()

	h.ListMessages(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	var res []messageResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(res))
	}
	if res[0].Name != "山田太郎" {
		t.Errorf("name = %s", res[0].Name)
	}
}

func TestContactHandler_DeleteMessage_NotFound_Returns404(t *testing.T) {
	service := &mockContactService{
		DeleteFunc: func(ctx context.Context, id string) error {
			return model.NewMessageNotFoundError(id)
		},
	}
	h := NewContactHandler(service)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/messages/missing", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "missing")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	h.DeleteMessage(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Result().StatusCode)
	}
}

func TestContactHandler_DeleteMessage(t *testing.T) {
	var deletedID string
	service := &mockContactService{
		DeleteFunc: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	h := NewContactHandler(service)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/messages/m-1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "m-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	h.DeleteMessage(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Result().StatusCode)
	}
	if deletedID != "m-1" {
		t.Errorf("deleted id = %s, want m-1", deletedID)
	}
}
