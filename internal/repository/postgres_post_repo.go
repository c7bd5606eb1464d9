package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/folio/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用したブログ記事ミラーリポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Upsert はGUIDをキーに記事を冪等にUPSERTする。
// 既存記事はタイトル・リンク・要約・公開日時を上書きする。
func (r *PostgresPostRepo) Upsert(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, guid, title, link, summary_html, published_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (guid) DO UPDATE
		 SET title = EXCLUDED.title,
		     link = EXCLUDED.link,
		     summary_html = EXCLUDED.summary_html,
		     published_at = EXCLUDED.published_at`,
		post.ID, post.GUID, post.Title, post.Link, post.SummaryHTML, post.PublishedAt, post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}
	return nil
}

// ListRecent は公開日時の降順で最大limit件の記事を返す。
func (r *PostgresPostRepo) ListRecent(ctx context.Context, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, guid, title, link, summary_html, published_at, created_at
		 FROM posts
		 ORDER BY published_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		p := &model.Post{}
		if err := rows.Scan(&p.ID, &p.GUID, &p.Title, &p.Link, &p.SummaryHTML, &p.PublishedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}

	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
