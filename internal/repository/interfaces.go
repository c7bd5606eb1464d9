// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/folio/internal/model"
)

// AdminRepository は管理者レコードの永続化インターフェース。
// レコードの作成・削除は運用側のシード処理で行うため提供しない。
type AdminRepository interface {
	// FindByEmail はメールアドレスの完全一致で管理者レコードを取得する。
	// is_activeにかかわらず返す（無効化済みの判定は呼び出し側で行う）。
	// 該当0件、またはメール一意性が壊れて複数件該当した場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.AdminIdentity, error)

	// UpdateLastLogin は最終ログイン日時を更新する。
	UpdateLastLogin(ctx context.Context, email string, at time.Time) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindLatest は最も新しい有効なセッションを取得する。存在しない場合はnilを返す。
	// プロセス起動時のゲート復元で使用する。
	FindLatest(ctx context.Context) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションをすべて削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// List はプロジェクト一覧をdisplay_order昇順で返す。
	// publishedOnlyがtrueの場合は公開済みのみを返す。
	List(ctx context.Context, publishedOnly bool) ([]*model.Project, error)

	// Create はプロジェクトを作成する。
	Create(ctx context.Context, project *model.Project) error

	// Update はプロジェクトを上書き更新する。
	Update(ctx context.Context, project *model.Project) error

	// UpdateImageURL はプレビュー画像URLのみを更新する。
	UpdateImageURL(ctx context.Context, id, imageURL string) error

	// Delete は指定IDのプロジェクトを削除する。
	Delete(ctx context.Context, id string) error

	// ListNeedingStarRefresh はGitHubスター数の再取得が必要なプロジェクトを返す。
	// repo_urlが設定済みで、stars_fetched_atがNULL（未取得）または
	// ttlより古いものを、未取得優先・古い順で最大limit件取得する。
	ListNeedingStarRefresh(ctx context.Context, ttl time.Duration, limit int) ([]*model.Project, error)

	// UpdateStarCount はスター数と取得日時を更新する。
	UpdateStarCount(ctx context.Context, id string, count int, fetchedAt time.Time) error
}

// PostRepository はブログ記事ミラーの永続化インターフェース。
type PostRepository interface {
	// Upsert はGUIDをキーに記事を冪等にUPSERTする。
	Upsert(ctx context.Context, post *model.Post) error

	// ListRecent は公開日時の降順で最大limit件の記事を返す。
	ListRecent(ctx context.Context, limit int) ([]*model.Post, error)
}

// ContactRepository は問い合わせメッセージの永続化インターフェース。
type ContactRepository interface {
	// Create はメッセージを作成する。
	Create(ctx context.Context, message *model.ContactMessage) error

	// ListRecent は受信日時の降順で最大limit件のメッセージを返す。
	ListRecent(ctx context.Context, limit int) ([]*model.ContactMessage, error)

	// DeleteByID は指定IDのメッセージを削除する。見つからない場合はエラーを返す。
	DeleteByID(ctx context.Context, id string) error

	// DeleteOlderThan は指定日数より古いメッセージを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}
