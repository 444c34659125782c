package repository

import (
	"context"

	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

// txを掴んだDBハンドルからアクセサ毎にrepositoryを組み立てる。
type txReposGorm struct {
	tx *gorm.DB
}

func (r txReposGorm) Orders() repo.OrderRepository                   { return NewOrderGormRepository(r.tx) }
func (r txReposGorm) OrderItems() repo.OrderItemRepository           { return NewOrderItemGormRepository(r.tx) }
func (r txReposGorm) OrderNotes() repo.OrderNoteRepository           { return NewOrderNoteGormRepository(r.tx) }
func (r txReposGorm) Inventory() repo.InventoryRepository            { return NewInventoryGormRepository(r.tx) }
func (r txReposGorm) Products() repo.ProductRepository               { return NewProductGormRepository(r.tx) }
func (r txReposGorm) Sellers() repo.SellerRepository                 { return NewSellerGormRepository(r.tx) }
func (r txReposGorm) SellerDocuments() repo.SellerDocumentRepository { return NewSellerDocumentGormRepository(r.tx) }
func (r txReposGorm) Users() repo.UserRepository                     { return NewUserGormRepository(r.tx) }

// gorm.DB.Transactionの薄いラッパー。
type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// fnがerrorを返すかpanicしたらrollback、nilならcommitされる。
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(txReposGorm{tx: tx})
	})
}
