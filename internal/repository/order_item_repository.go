package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 注文明細。注文作成トランザクションの中でまとめて書き込む。
type OrderItemRepository interface {
	// CreateBulk は全itemsのOrderIDをorderIDに揃えてから一括INSERTする。
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
