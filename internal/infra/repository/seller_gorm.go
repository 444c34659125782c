package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type SellerGormRepository struct {
	db *gorm.DB
}

func NewSellerGormRepository(db *gorm.DB) *SellerGormRepository {
	return &SellerGormRepository{db: db}
}

func (r *SellerGormRepository) Create(ctx context.Context, seller model.Seller) (model.Seller, error) {
	if err := r.db.WithContext(ctx).Create(&seller).Error; err != nil {
		return model.Seller{}, err
	}
	return seller, nil
}

func (r *SellerGormRepository) FindByID(ctx context.Context, sellerID int64) (model.Seller, error) {
	var s model.Seller
	err := r.db.WithContext(ctx).First(&s, sellerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Seller{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Seller{}, err
	}
	return s, nil
}

func (r *SellerGormRepository) FindByUserID(ctx context.Context, userID int64) (model.Seller, error) {
	var s model.Seller
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Seller{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Seller{}, err
	}
	return s, nil
}

func (r *SellerGormRepository) ListByVerificationStatus(ctx context.Context, status model.VerificationStatus, page int, limit int) ([]model.Seller, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Seller{})
	if status != "" {
		q = q.Where("verification_status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Seller{}, 0, err
	}

	var items []model.Seller
	offset := (page - 1) * limit
	if err := q.Order("id asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Seller{}, 0, err
	}

	return items, total, nil
}

// from のときだけ to へ進める。0件は競合か状態違い。
func (r *SellerGormRepository) UpdateVerification(ctx context.Context, sellerID int64, from, to model.VerificationStatus, upd repo.VerificationUpdate) (bool, error) {
	values := map[string]any{
		"verification_status": to,
		"verification_notes":  upd.Notes,
	}
	if upd.RejectionReason != "" {
		values["rejection_reason"] = upd.RejectionReason
	}
	if upd.TrustBadges != "" {
		values["trust_badges"] = upd.TrustBadges
	}
	if upd.VerifiedAt != nil {
		values["verified_at"] = upd.VerifiedAt
		values["verified_by"] = upd.VerifiedBy
	}

	res := r.db.WithContext(ctx).Model(&model.Seller{}).
		Where("id = ? AND verification_status = ?", sellerID, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SellerGormRepository) SetActive(ctx context.Context, sellerID int64, active bool) error {
	res := r.db.WithContext(ctx).Model(&model.Seller{}).
		Where("id = ?", sellerID).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 釈放時の実績加算
func (r *SellerGormRepository) AddSale(ctx context.Context, sellerID int64, amount int64) error {
	res := r.db.WithContext(ctx).Model(&model.Seller{}).
		Where("id = ?", sellerID).
		Updates(map[string]any{
			"total_sales":  gorm.Expr("total_sales + ?", amount),
			"total_orders": gorm.Expr("total_orders + ?", 1),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
