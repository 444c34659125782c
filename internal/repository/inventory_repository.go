package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 在庫操作。注文確定・キャンセル・返金・管理者の手動調整から呼ばれる。
type InventoryRepository interface {
	// 現在値を直接設定する。管理者調整用。
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 足りるときだけ減算する。減らせなかったら (false, nil)。
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し。
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 在庫が 0 なら out_of_stock、回復したら active に戻す。
	// inactive / discontinued には触らない。
	SyncAvailability(ctx context.Context, productID int64) error

	// 増減の理由を履歴として残す。
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
