package repository

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
)

// 監査ログの絞り込み。nilのフィールドは条件に入れない。
// CreatedFrom/CreatedToは半開区間 [from, to) で扱う。
type AuditLogFilter struct {
	ActorUserID *int64
	Action      *model.AuditAction

	ResourceType *model.AuditResourceType
	ResourceID   *int64

	CreatedFrom *time.Time
	CreatedTo   *time.Time

	Limit  int
	Offset int
}

// 監査ログは追記と検索のみ。更新・削除は提供しない。
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error

	// 新しい順で返す。Limitが外れ値でも全件は返さない。
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, error)
}
