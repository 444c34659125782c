package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

// エスクロー進行中と見なす争議ステータス
var blockingDisputeStatuses = []model.DisputeStatus{
	model.DisputeStatusOpen,
	model.DisputeStatusUnderReview,
}

// 注文の永続化。状態遷移は現在の状態を条件に含めたUPDATE一発で行い、
// 影響行数0（競合か状態違い）をboolで呼び出し側へ返す。
type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

// 存在しないIDはrepo.ErrNotFoundに写す
func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).First(&o, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Order{}, repo.ErrNotFound
		}
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, bool, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Order{}, false, nil
		}
		return model.Order{}, false, err
	}
	return o, true, nil
}

// 購入者側・出品者側の一覧は列が違うだけなので共通化する
func (r *OrderGormRepository) listByOwner(ctx context.Context, cond string, ownerID int64, page, limit int) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).Where(cond, ownerID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	if err := q.Order("id desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}
	return items, total, nil
}

func (r *OrderGormRepository) ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error) {
	return r.listByOwner(ctx, "buyer_id = ?", buyerID, page, limit)
}

func (r *OrderGormRepository) ListBySellerID(ctx context.Context, sellerID int64, page int, limit int) ([]model.Order, int64, error) {
	return r.listByOwner(ctx, "seller_id = ?", sellerID, page, limit)
}

// 採番されたIDを返す。注文の作成は必ずWithinTxの中で呼ばれる。
func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

// from のときだけ to へ。影響行数 0 は競合か状態違い。
func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) MarkShipped(ctx context.Context, orderID int64, carrier, trackingNumber string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderStatusProcessing).
		Updates(map[string]any{
			"status":                   model.OrderStatusShipped,
			"shipping_carrier":         carrier,
			"shipping_tracking_number": trackingNumber,
			"shipping_shipped_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) ConfirmPayment(ctx context.Context, orderID int64, paymentRef string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ? AND escrow_status = ?",
			orderID, model.OrderStatusPendingPayment, model.EscrowStatusPending).
		Updates(map[string]any{
			"status":               model.OrderStatusPaymentConfirmed,
			"escrow_status":        model.EscrowStatusHeld,
			"payment_reference":    paymentRef,
			"payment_confirmed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) HoldEscrow(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND escrow_status = ?", orderID, model.EscrowStatusPending).
		Update("escrow_status", model.EscrowStatusHeld)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 自動釈放期限は IS NULL 条件で一度だけ書く。再配達確定でも延びない。
func (r *OrderGormRepository) MarkDelivered(ctx context.Context, orderID int64, deliveredAt, autoReleaseAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status IN ? AND escrow_auto_release_at IS NULL",
			orderID, []model.OrderStatus{model.OrderStatusShipped, model.OrderStatusOutForDelivery}).
		Updates(map[string]any{
			"status":                      model.OrderStatusDelivered,
			"shipping_delivered_at":       deliveredAt,
			"escrow_auto_release_at":      autoReleaseAt,
			"escrow_release_requested":    true,
			"escrow_release_requested_at": deliveredAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) ReleaseEscrow(ctx context.Context, orderID int64, releasedBy string, at time.Time, customerApproved bool) (bool, error) {
	upd := map[string]any{
		"escrow_status":      model.EscrowStatusReleasedToSeller,
		"escrow_released_at": at,
		"escrow_released_by": releasedBy,
	}
	if customerApproved {
		upd["escrow_customer_approval"] = true
		upd["escrow_customer_approval_at"] = at
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND escrow_status = ? AND dispute_status NOT IN ?",
			orderID, model.EscrowStatusHeld, blockingDisputeStatuses).
		Updates(upd)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) RefundEscrow(ctx context.Context, orderID int64, amount int64, reason string, at time.Time) (bool, error) {
	// 裁定経路は同一トランザクション内で先に dispute_status を resolved に倒してから呼ぶ
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND escrow_status = ? AND dispute_status NOT IN ?",
			orderID, model.EscrowStatusHeld, blockingDisputeStatuses).
		Updates(map[string]any{
			"escrow_status":       model.EscrowStatusRefundedToCustomer,
			"refund_is_refunded":  true,
			"refund_amount":       amount,
			"refund_reason":       reason,
			"refund_approved_at":  at,
			"refund_processed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) MarkRefundRequested(ctx context.Context, orderID int64, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND escrow_status = ? AND refund_requested_at IS NULL",
			orderID, model.EscrowStatusHeld).
		Updates(map[string]any{
			"refund_reason":       reason,
			"refund_requested_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]model.Order, error) {
	var items []model.Order
	err := r.db.WithContext(ctx).
		Where("escrow_status = ? AND escrow_auto_release_at IS NOT NULL AND escrow_auto_release_at <= ? AND dispute_status NOT IN ?",
			model.EscrowStatusHeld, now, blockingDisputeStatuses).
		Order("escrow_auto_release_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *OrderGormRepository) OpenDispute(ctx context.Context, orderID int64, openedBy int64, reason, description, evidence string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND escrow_status = ? AND dispute_status NOT IN ?",
			orderID, model.EscrowStatusHeld, blockingDisputeStatuses).
		Updates(map[string]any{
			"dispute_is_disputed": true,
			"dispute_status":      model.DisputeStatusOpen,
			"dispute_reason":      reason,
			"dispute_description": description,
			"dispute_evidence":    evidence,
			"dispute_opened_by":   openedBy,
			"dispute_opened_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) StartDisputeReview(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND dispute_status = ?", orderID, model.DisputeStatusOpen).
		Update("dispute_status", model.DisputeStatusUnderReview)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) ResolveDispute(ctx context.Context, orderID int64, resolvedBy int64, resolution string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND dispute_status IN ?", orderID, blockingDisputeStatuses).
		Updates(map[string]any{
			"dispute_status":      model.DisputeStatusResolved,
			"dispute_resolved_by": resolvedBy,
			"dispute_resolved_at": at,
			"dispute_resolution":  resolution,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 同じ冪等キーで作成済みの注文があればそれを返す（二重送信の検出用）
func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND idempotency_key = ?", buyerID, key).
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Order{}, false, nil
		}
		return model.Order{}, false, err
	}
	return o, true, nil
}

// nilのフィールドは条件に入れない。FromとToはどちらも含む。
func applyAdminOrderFilter(tx *gorm.DB, f repo.AdminOrderListFilter) *gorm.DB {
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.BuyerID != nil {
		tx = tx.Where("buyer_id = ?", *f.BuyerID)
	}
	if f.SellerID != nil {
		tx = tx.Where("seller_id = ?", *f.SellerID)
	}
	if f.From != nil {
		tx = tx.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		tx = tx.Where("created_at <= ?", *f.To)
	}
	return tx
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	// ページングの既定値は購入者・出品者の一覧と揃える
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := applyAdminOrderFilter(r.db.WithContext(ctx).Model(&model.Order{}), f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	var items []model.Order
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}
	return items, total, nil
}
