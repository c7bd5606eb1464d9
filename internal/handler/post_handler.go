package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
)

const (
	defaultPostLimit = 20
	maxPostLimit     = 100
)

// PostListerInterface は記事ハンドラーが必要とするインターフェース。
// repository.PostRepositoryの部分集合として定義する。
type PostListerInterface interface {
	ListRecent(ctx context.Context, limit int) ([]*model.Post, error)
}

// PostHandler はブログ記事のHTTPハンドラー。
type PostHandler struct {
	posts PostListerInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(posts PostListerInterface) *PostHandler {
	return &PostHandler{posts: posts}
}

// postResponse はブログ記事のAPIレスポンス。
type postResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	SummaryHTML string    `json:"summary_html"`
	PublishedAt time.Time `json:"published_at"`
}

// ListRecent は同期済みのブログ記事を公開日時の降順で返す。
// GET /api/posts?limit=20
func (h *PostHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultPostLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("limitは1以上の整数を指定してください"))
			return
		}
		if n > maxPostLimit {
			n = maxPostLimit
		}
		limit = n
	}

	posts, err := h.posts.ListRecent(r.Context(), limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	res := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		res = append(res, postResponse{
			ID:          p.ID,
			Title:       p.Title,
			Link:        p.Link,
			SummaryHTML: p.SummaryHTML,
			PublishedAt: p.PublishedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}
