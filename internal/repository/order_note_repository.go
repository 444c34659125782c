package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 追記専用。更新・削除のメソッドは作らない。
type OrderNoteRepository interface {
	Append(ctx context.Context, note model.OrderNote) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderNote, error)
}
