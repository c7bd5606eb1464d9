// Package model はドメインモデルを定義する。
package model

import "time"

// ContactMessage は問い合わせフォームから送信されたメッセージを表す。
// Bodyは保存時にサニタイズ済みのプレーンテキスト。
type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Body      string
	CreatedAt time.Time
}
