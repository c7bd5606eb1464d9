// Package model はドメインモデルを定義する。
package model

import "time"

// Post は外部ブログのフィードから同期した記事を表す。
// GUIDはフィード内の一意識別子で、同期時の同一性判定に使用する。
type Post struct {
	ID          string
	GUID        string
	Title       string
	Link        string
	SummaryHTML string
	PublishedAt time.Time
	CreatedAt   time.Time
}
