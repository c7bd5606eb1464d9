package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/folio/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用した問い合わせメッセージリポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

// Create はメッセージを作成する。
func (r *PostgresContactRepo) Create(ctx context.Context, message *model.ContactMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contact_messages (id, name, email, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		message.ID, message.Name, message.Email, message.Body, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact message: %w", err)
	}
	return nil
}

// ListRecent は受信日時の降順で最大limit件のメッセージを返す。
func (r *PostgresContactRepo) ListRecent(ctx context.Context, limit int) ([]*model.ContactMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, body, created_at
		 FROM contact_messages
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.ContactMessage
	for rows.Next() {
		m := &model.ContactMessage{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contact message rows: %w", err)
	}

	return messages, nil
}

// DeleteByID は指定IDのメッセージを削除する。
func (r *PostgresContactRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM contact_messages WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete contact message: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("contact message not found: %s", id)
	}
	return nil
}

// DeleteOlderThan は指定日数より古いメッセージを削除し、削除件数を返す。
func (r *PostgresContactRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	interval := fmt.Sprintf("%d days", days)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM contact_messages WHERE created_at < now() - $1::interval`,
		interval,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old contact messages: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ ContactRepository = (*PostgresContactRepo)(nil)
