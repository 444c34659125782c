package model

import "time"

type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusInactive     ProductStatus = "inactive"
	ProductStatusOutOfStock   ProductStatus = "out_of_stock"
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

// 商品は削除しない。販売を止めるときは inactive / discontinued にする。
// out_of_stock は在庫 0 との同期でのみ付け外しされる。
type Product struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID    int64         `gorm:"not null;index" json:"seller_id"`
	Name        string        `gorm:"type:varchar(255);not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	SKU         string        `gorm:"type:varchar(64);not null;index" json:"sku"`
	ImageURL    string        `gorm:"type:varchar(512)" json:"image_url"`
	Price       int64         `gorm:"not null" json:"price"`
	Stock       int64         `gorm:"not null" json:"stock"`
	Status      ProductStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt   time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (p *Product) IsPurchasable() bool {
	return p.Status == ProductStatusActive
}
