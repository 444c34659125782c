package repository

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
)

// 審査ステータス更新で同時に書き換える項目
type VerificationUpdate struct {
	Notes           string
	RejectionReason string
	TrustBadges     string
	VerifiedBy      int64
	VerifiedAt      *time.Time
}

type SellerRepository interface {
	Create(ctx context.Context, seller model.Seller) (model.Seller, error)
	FindByID(ctx context.Context, sellerID int64) (model.Seller, error)
	FindByUserID(ctx context.Context, userID int64) (model.Seller, error)
	ListByVerificationStatus(ctx context.Context, status model.VerificationStatus, page int, limit int) ([]model.Seller, int64, error)

	// from のときだけ to へ進める条件付き更新
	UpdateVerification(ctx context.Context, sellerID int64, from, to model.VerificationStatus, upd VerificationUpdate) (bool, error)
	SetActive(ctx context.Context, sellerID int64, active bool) error

	// 釈放時の実績加算（売上金額と注文数）
	AddSale(ctx context.Context, sellerID int64, amount int64) error
}
