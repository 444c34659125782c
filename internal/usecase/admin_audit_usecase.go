package usecase

import (
	"context"
	"fmt"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 監査ログの閲覧と、usecase外の管理操作の記録。
type AdminAuditUsecase struct {
	audits repo.AuditLogRepository
}

func NewAdminAuditUsecase(audits repo.AuditLogRepository) *AdminAuditUsecase {
	return &AdminAuditUsecase{audits: audits}
}

type AuditLogListResponse struct {
	Logs   []model.AuditLog `json:"logs"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func (u *AdminAuditUsecase) List(ctx context.Context, filter repo.AuditLogFilter) (*AuditLogListResponse, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	logs, err := u.audits.List(ctx, filter)
	if err != nil {
		return nil, ErrInternal
	}

	return &AuditLogListResponse{
		Logs:   logs,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// 強制ログアウトの記録。ログアウト成功後に呼ぶ。
func (u *AdminAuditUsecase) RecordForceLogout(ctx context.Context, adminID, targetUserID int64, newTokenVersion int) error {
	entry := model.AuditLog{
		ActorUserID:  adminID,
		Action:       model.AuditActionForceLogout,
		ResourceType: model.AuditResourceUser,
		ResourceID:   targetUserID,
		AfterJSON:    fmt.Sprintf(`{"token_version":%d}`, newTokenVersion),
	}
	if err := u.audits.Create(ctx, entry); err != nil {
		return ErrInternal
	}
	return nil
}
