package repository

import "context"

// 1トランザクションの中で使えるrepository群。
// 注文確定・キャンセル・審査承認のように複数テーブルをまとめて書く処理が使う。
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	OrderNotes() OrderNoteRepository
	Inventory() InventoryRepository
	Products() ProductRepository
	Sellers() SellerRepository
	SellerDocuments() SellerDocumentRepository
	Users() UserRepository
}

// BEGIN/COMMIT/ROLLBACKをusecaseから隠す。
// fnがerrorを返したらrollback、nilならcommit。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
