package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/folio/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

const projectColumns = `id, title, summary, description_html, repo_url, live_url, image_url,
	star_count, stars_fetched_at, display_order, published, created_at, updated_at`

// scanProject は1行をmodel.Projectに読み取る。
func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	p := &model.Project{}
	err := row.Scan(
		&p.ID, &p.Title, &p.Summary, &p.DescriptionHTML, &p.RepoURL, &p.LiveURL, &p.ImageURL,
		&p.StarCount, &p.StarsFetchedAt, &p.DisplayOrder, &p.Published, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		id,
	)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by ID: %w", err)
	}
	return p, nil
}

// List はプロジェクト一覧をdisplay_order昇順、同順位は作成日時降順で返す。
func (r *PostgresProjectRepo) List(ctx context.Context, publishedOnly bool) ([]*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	if publishedOnly {
		query += ` WHERE published = TRUE`
	}
	query += ` ORDER BY display_order ASC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}

	return projects, nil
}

// Create はプロジェクトを作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, project *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, title, summary, description_html, repo_url, live_url, image_url,
		                       star_count, stars_fetched_at, display_order, published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		project.ID, project.Title, project.Summary, project.DescriptionHTML,
		project.RepoURL, project.LiveURL, project.ImageURL,
		project.StarCount, project.StarsFetchedAt, project.DisplayOrder, project.Published,
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Update はプロジェクトを上書き更新する。
func (r *PostgresProjectRepo) Update(ctx context.Context, project *model.Project) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects
		 SET title = $1, summary = $2, description_html = $3, repo_url = $4, live_url = $5,
		     image_url = $6, display_order = $7, published = $8, updated_at = $9
		 WHERE id = $10`,
		project.Title, project.Summary, project.DescriptionHTML, project.RepoURL, project.LiveURL,
		project.ImageURL, project.DisplayOrder, project.Published, project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project not found: %s", project.ID)
	}
	return nil
}

// UpdateImageURL はプレビュー画像URLのみを更新する。
func (r *PostgresProjectRepo) UpdateImageURL(ctx context.Context, id, imageURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE projects SET image_url = $1, updated_at = now() WHERE id = $2`,
		imageURL, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update project image URL: %w", err)
	}
	return nil
}

// Delete は指定IDのプロジェクトを削除する。
func (r *PostgresProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

// ListNeedingStarRefresh はGitHubスター数の再取得が必要なプロジェクトを返す。
// 未取得（stars_fetched_at IS NULL）を優先し、次に取得日時が古い順に処理する。
func (r *PostgresProjectRepo) ListNeedingStarRefresh(ctx context.Context, ttl time.Duration, limit int) ([]*model.Project, error) {
	interval := fmt.Sprintf("%d seconds", int(ttl.Seconds()))

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+`
		 FROM projects
		 WHERE repo_url <> ''
		   AND (stars_fetched_at IS NULL OR stars_fetched_at < now() - $1::interval)
		 ORDER BY stars_fetched_at ASC NULLS FIRST
		 LIMIT $2`,
		interval, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects needing star refresh: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}

	return projects, nil
}

// UpdateStarCount はスター数と取得日時を更新する。
func (r *PostgresProjectRepo) UpdateStarCount(ctx context.Context, id string, count int, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE projects SET star_count = $1, stars_fetched_at = $2 WHERE id = $3`,
		count, fetchedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update star count: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
