package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/folio/internal/model"
)

// PostgresAdminRepo はPostgreSQLを使用した管理者レコードリポジトリ。
type PostgresAdminRepo struct {
	db *sql.DB
}

// NewPostgresAdminRepo はPostgresAdminRepoを生成する。
func NewPostgresAdminRepo(db *sql.DB) *PostgresAdminRepo {
	return &PostgresAdminRepo{db: db}
}

// FindByEmail はメールアドレスの完全一致で管理者レコードを取得する。
// emailカラムには一意制約があるため通常は最大1件だが、
// 万一複数件返った場合は認可判定を安全側に倒してnilを返す。
func (r *PostgresAdminRepo) FindByEmail(ctx context.Context, email string) (*model.AdminIdentity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, display_name, is_active, last_login_at, created_at, updated_at
		 FROM admin_users
		 WHERE email = $1
		 LIMIT 2`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find admin by email: %w", err)
	}
	defer rows.Close()

	var admins []*model.AdminIdentity
	for rows.Next() {
		admin := &model.AdminIdentity{}
		if err := rows.Scan(
			&admin.ID, &admin.Email, &admin.DisplayName, &admin.IsActive,
			&admin.LastLoginAt, &admin.CreatedAt, &admin.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan admin row: %w", err)
		}
		admins = append(admins, admin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate admin rows: %w", err)
	}

	if len(admins) != 1 {
		return nil, nil
	}
	return admins[0], nil
}

// UpdateLastLogin は最終ログイン日時を更新する。
func (r *PostgresAdminRepo) UpdateLastLogin(ctx context.Context, email string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE admin_users SET last_login_at = $1, updated_at = now() WHERE email = $2`,
		at, email,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AdminRepository = (*PostgresAdminRepo)(nil)
