package repository

import (
	"context"
	"errors"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

// 商品の読み書き。公開向けの取得はstatus=activeに絞って引く。
type ProductGormRepository struct {
	db *gorm.DB
}

func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 検索条件をWHERE句に展開する。statusの絞り込みは呼び出し側で足す。
func applyProductFilter(tx *gorm.DB, q repo.ProductListQuery) *gorm.DB {
	if kw := strings.TrimSpace(q.Q); kw != "" {
		tx = tx.Where("name ILIKE ?", "%"+kw+"%")
	}
	if q.SellerID != nil {
		tx = tx.Where("seller_id = ?", *q.SellerID)
	}
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}
	return tx
}

// 対応ソートは価格の昇降のみ。それ以外は新着順。idを第2キーにして順序を安定させる。
func applyProductSort(tx *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case "price_asc":
		return tx.Order("price asc").Order("id asc")
	case "price_desc":
		return tx.Order("price desc").Order("id desc")
	default:
		return tx.Order("created_at desc").Order("id desc")
	}
}

// 公開一覧。activeのみを検索/価格帯/ソート/ページング付きで返す。
func (r *ProductGormRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	tx := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("status = ?", model.ProductStatusActive)
	tx = applyProductFilter(tx, q)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	products := []model.Product{}
	err := applyProductSort(tx, q.Sort).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// 出品者本人向けの一覧。ステータスでは隠さず全件返す。
func (r *ProductGormRepository) ListBySellerID(ctx context.Context, sellerID int64, page int, limit int) ([]model.Product, int64, error) {
	tx := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("seller_id = ?", sellerID)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	products := []model.Product{}
	err := tx.Order("id desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Product{}, repo.ErrNotFound
		}
		return model.Product{}, err
	}
	return p, nil
}

// 採番後の値を返すので、呼び出し側は戻り値を使うこと。
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 更新対象の列を明示する。ゼロ値（price=0など）もそのまま書けるようにUpdatesはmapで渡す。
func (r *ProductGormRepository) Update(ctx context.Context, p model.Product) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"sku":         p.SKU,
			"image_url":   p.ImageURL,
			"price":       p.Price,
			"stock":       p.Stock,
			"status":      p.Status,
		})
	if res.Error != nil {
		return res.Error
	}
	// 対象が無ければ0行更新になる
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 物理削除はしない。取り下げはstatusの変更で表す。
func (r *ProductGormRepository) UpdateStatus(ctx context.Context, id int64, status model.ProductStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	// 0件更新は対象の商品なし
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
