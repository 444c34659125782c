package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一覧検索の条件。nilのフィールドは絞り込みなし。
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string // 商品名の部分一致
	SellerID *int64
	MinPrice *int64
	MaxPrice *int64
	Sort     string // price_asc / price_desc / 省略で新着順
}

// 商品の保存・取得。物理削除はなく、取り下げはstatusで表す。
type ProductRepository interface {
	// 公開一覧。activeのみ。
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	// 出品者本人向けの一覧。全ステータス。
	ListBySellerID(ctx context.Context, sellerID int64, page int, limit int) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	UpdateStatus(ctx context.Context, id int64, status model.ProductStatus) error
}
