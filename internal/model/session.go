// Package model はドメインモデルを定義する。
package model

import "time"

// Session は管理者のログインセッションを表す。
// IDプロバイダー側のセッションとは別に、サーバー側で発行・永続化する。
// ProviderTokenはサインアウト時にプロバイダー側セッションを失効させるために保持する。
type Session struct {
	ID            string
	AdminEmail    string
	ProviderToken string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// GateState はセッションゲートの状態を表す。
type GateState string

const (
	// GateUninitialized はInitialize未実行の初期状態。
	GateUninitialized GateState = "uninitialized"
	// GateLoading はInitialize実行中の状態。許可/拒否の判断はまだ行えない。
	GateLoading GateState = "loading"
	// GateAuthenticated は認証・認可済みの管理者が存在する状態。
	GateAuthenticated GateState = "authenticated"
	// GateUnauthenticated は有効な管理者セッションが存在しない状態。
	// すべての失敗はこの状態に解決され、Loadingに留まることはない。
	GateUnauthenticated GateState = "unauthenticated"
)

// GateSnapshot はゲートの状態のイミュータブルなスナップショット。
// ルートガード等の消費側はこのコピーのみを参照し、ゲート内部の状態を直接共有しない。
type GateSnapshot struct {
	State         GateState
	Authenticated bool
	Admin         *AdminIdentity
}
