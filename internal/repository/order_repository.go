package repository

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
)

// 管理者一覧の絞り込み条件。nilのフィールドは使わない。FromとToはどちらも含む。
type AdminOrderListFilter struct {
	Page     int
	Limit    int
	Status   string
	BuyerID  *int64
	SellerID *int64
	From     *time.Time
	To       *time.Time
}

// 状態を変えるメソッドは WHERE に現在値の条件を入れた条件付き UPDATE で実装し、
// 影響行数 0 のとき false を返す。読んでから書くまでの競合はここで潰す。
type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, bool, error)
	ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error)
	ListBySellerID(ctx context.Context, sellerID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// 注文ステータスの前進（from のときだけ to にする）
	UpdateStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error)
	// 発送情報の記録（processing -> shipped）
	MarkShipped(ctx context.Context, orderID int64, carrier, trackingNumber string, at time.Time) (bool, error)

	// 支払確認。pending_payment かつエスクロー pending のときだけ
	// payment_confirmed / held へ進めて支払参照と時刻を記録する。
	ConfirmPayment(ctx context.Context, orderID int64, paymentRef string, at time.Time) (bool, error)
	// エスクローを pending -> held にするだけの保険（支払確認が先に届かなかった場合）
	HoldEscrow(ctx context.Context, orderID int64) (bool, error)
	// 配達確定。shipped / out_for_delivery からのみ。自動釈放期限は一度だけ設定する。
	MarkDelivered(ctx context.Context, orderID int64, deliveredAt, autoReleaseAt time.Time) (bool, error)
	// held -> released_to_seller。未解決の争議があるときは釈放しない。
	ReleaseEscrow(ctx context.Context, orderID int64, releasedBy string, at time.Time, customerApproved bool) (bool, error)
	// held -> refunded_to_customer。返金サブレコードも同時に確定する。
	RefundEscrow(ctx context.Context, orderID int64, amount int64, reason string, at time.Time) (bool, error)
	// 返金申請の記録（held かつ未申請のときだけ）
	MarkRefundRequested(ctx context.Context, orderID int64, reason string, at time.Time) (bool, error)

	// 自動釈放の対象（held・期限到来・未解決争議なし）
	ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]model.Order, error)

	// 争議の開始・審査開始・裁定
	OpenDispute(ctx context.Context, orderID int64, openedBy int64, reason, description, evidence string, at time.Time) (bool, error)
	StartDisputeReview(ctx context.Context, orderID int64) (bool, error)
	ResolveDispute(ctx context.Context, orderID int64, resolvedBy int64, resolution string, at time.Time) (bool, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
