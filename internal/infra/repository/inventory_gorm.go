package repository

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

// 在庫はproductsテーブルのstock列で持つ。減算は条件付きUPDATE一発で行い、
// 行ロックを取っての読み直しはしない。
type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) SetStock(ctx context.Context, productID int64, newStock int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", newStock)
	if res.Error != nil {
		return res.Error
	}
	// 0行更新は対象の商品なし
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// stock >= qty の行だけ減らす。0行更新は在庫不足としてfalseで返す。
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 在庫戻し。キャンセルや返金で使う。
func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 戻し先の商品が消えている
		return repo.ErrNotFound
	}
	return nil
}

// stockとstatusを揃える。0なら active → out_of_stock、戻れば out_of_stock → active。
// inactive と discontinued は在庫に関係なく維持する。
func (r *InventoryGormRepository) SyncAvailability(ctx context.Context, productID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock = 0 AND status = ?", productID, model.ProductStatusActive).
		Update("status", model.ProductStatusOutOfStock)
	if res.Error != nil {
		return res.Error
	}

	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock > 0 AND status = ?", productID, model.ProductStatusOutOfStock).
		Update("status", model.ProductStatusActive).Error
}

func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Create(&adj).Error
}
