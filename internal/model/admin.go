// Package model はドメインモデルを定義する。
package model

import "time"

// AdminIdentity は管理画面へのアクセスを許可された管理者レコードを表す。
// 認可の判定キーはメールアドレス。IDプロバイダーのセッションが有効でも、
// is_activeな行が存在しない限り管理者として扱わない。
// レコードは運用側でシードされ、このサービスからは作成・削除しない。
type AdminIdentity struct {
	ID          string
	Email       string
	DisplayName string
	IsActive    bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
