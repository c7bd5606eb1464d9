// Package model はドメインモデルを定義する。
package model

import "time"

// Project はポートフォリオに掲載する制作物を表す。
// DescriptionHTMLは保存時にサニタイズ済みのHTML。
type Project struct {
	ID              string
	Title           string
	Summary         string
	DescriptionHTML string
	RepoURL         string
	LiveURL         string
	ImageURL        string
	StarCount       int
	StarsFetchedAt  *time.Time
	DisplayOrder    int
	Published       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
