package model

import "time"

// 注文明細。商品名・SKU・単価は注文時点のスナップショットを持ち、
// 後から商品を編集しても過去の注文は変わらない。
type OrderItem struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64 `gorm:"not null;index" json:"order_id"`
	ProductID int64 `gorm:"not null;index" json:"product_id"`

	//ここから下は注文確定時に焼き込む値
	ProductNameSnapshot string `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	SKUSnapshot         string `gorm:"type:varchar(64);not null" json:"sku_snapshot"`
	ImageURLSnapshot    string `gorm:"type:varchar(512)" json:"image_url_snapshot,omitempty"`
	UnitPriceSnapshot   int64  `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64  `gorm:"not null" json:"quantity"`

	//LineTotal = UnitPriceSnapshot * Quantity。集計を楽にするため保存しておく。
	LineTotal int64 `gorm:"not null" json:"line_total"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
