package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
)

const messageListLimit = 100

// ContactServiceInterface は問い合わせハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	// Submit は問い合わせメッセージを検証・保存し、通知メールを送信する。
	Submit(ctx context.Context, name, email, body string) (*model.ContactMessage, error)
	// ListRecent は受信日時の降順でメッセージを返す。
	ListRecent(ctx context.Context, limit int) ([]*model.ContactMessage, error)
	// Delete はメッセージを削除する。
	Delete(ctx context.Context, id string) error
}

// ContactHandler は問い合わせフォームのHTTPハンドラー。
type ContactHandler struct {
	service ContactServiceInterface
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactServiceInterface) *ContactHandler {
	return &ContactHandler{service: service}
}

// contactRequest は問い合わせ送信リクエストのボディ。
type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Body  string `json:"body"`
}

// messageResponse は問い合わせメッセージのAPIレスポンス。
type messageResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Submit は問い合わせメッセージを受け付ける。
// POST /api/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	message, err := h.service.Submit(r.Context(), req.Name, req.Email, req.Body)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": message.ID})
}

// ListMessages は受信済みメッセージの一覧を返す。
// GET /api/admin/messages
func (h *ContactHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.ListRecent(r.Context(), messageListLimit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	res := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		res = append(res, messageResponse{
			ID:        m.ID,
			Name:      m.Name,
			Email:     m.Email,
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// DeleteMessage はメッセージを削除する。
// DELETE /api/admin/messages/{id}
func (h *ContactHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
