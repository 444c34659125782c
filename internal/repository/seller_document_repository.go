package repository

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
)

type SellerDocumentRepository interface {
	Create(ctx context.Context, doc model.SellerDocument) (model.SellerDocument, error)
	FindByID(ctx context.Context, docID int64) (model.SellerDocument, error)
	ListBySellerID(ctx context.Context, sellerID int64) ([]model.SellerDocument, error)

	// pending の書類だけを審査結果で確定する
	Review(ctx context.Context, docID int64, status model.DocumentStatus, reviewedBy int64, note string, at time.Time) (bool, error)
}
