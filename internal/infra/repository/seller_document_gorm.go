package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type SellerDocumentGormRepository struct {
	db *gorm.DB
}

func NewSellerDocumentGormRepository(db *gorm.DB) *SellerDocumentGormRepository {
	return &SellerDocumentGormRepository{db: db}
}

func (r *SellerDocumentGormRepository) Create(ctx context.Context, doc model.SellerDocument) (model.SellerDocument, error) {
	if err := r.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return model.SellerDocument{}, err
	}
	return doc, nil
}

func (r *SellerDocumentGormRepository) FindByID(ctx context.Context, docID int64) (model.SellerDocument, error) {
	var d model.SellerDocument
	err := r.db.WithContext(ctx).First(&d, docID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SellerDocument{}, repo.ErrNotFound
	}
	if err != nil {
		return model.SellerDocument{}, err
	}
	return d, nil
}

func (r *SellerDocumentGormRepository) ListBySellerID(ctx context.Context, sellerID int64) ([]model.SellerDocument, error) {
	var items []model.SellerDocument
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// pending のものだけ確定できる。二重審査は 0 件更新になる。
func (r *SellerDocumentGormRepository) Review(ctx context.Context, docID int64, status model.DocumentStatus, reviewedBy int64, note string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.SellerDocument{}).
		Where("id = ? AND status = ?", docID, model.DocumentStatusPending).
		Updates(map[string]any{
			"status":      status,
			"note":        note,
			"reviewed_by": reviewedBy,
			"reviewed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
