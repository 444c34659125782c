package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 管理者の注文オペレーション。一覧・詳細と、遷移表に沿った手動のステータス変更。
// 書き込みは全部WithinTxの中で行う。
type AdminOrderUsecase struct {
	auditRepo repo.AuditLogRepository
	tx        repo.TransactionManager
	clock     Clock
	events    EscrowEventPublisher
}

func NewAdminOrderUsecase(tx repo.TransactionManager, auditRepo repo.AuditLogRepository, clock Clock, events EscrowEventPublisher) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, auditRepo: auditRepo, clock: clock, events: events}
}

// 注文一覧（状態・買手・売手・期間で絞り込み）
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	// ページングの下限と上限だけ弾く
	if f.Page < 1 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" && !isOrderStatus(f.Status) {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var outs []OrderOutput

	// 一覧と明細を同じトランザクションのスナップショットで読む
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		now := u.clock.Now()
		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items, nil, now))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *AdminOrderUsecase) GetDetail(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		notes, err := r.OrderNotes().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items, notes, u.clock.Now())
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// ステータスの手動変更。遷移表に無い変更は拒否する。
// delivered は自動釈放期限の設定が要るのでここでは扱わない（配達確定の経路のみ）。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) error {
	switch {
	case actorAdminUserID <= 0:
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case orderID <= 0:
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus := model.OrderStatus(strings.TrimSpace(in.Status))
	switch newStatus {
	case model.OrderStatusProcessing, model.OrderStatusOutForDelivery,
		model.OrderStatusCancelled, model.OrderStatusRefunded:
		// 手動で入れてよいのはこの4つだけ
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var updated model.Order
	var refunded bool
	var updatedAt time.Time

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// 同じ値への変更は冪等に成功させる
		if o.Status == newStatus {
			return nil
		}
		if !model.CanTransitionOrder(o.Status, newStatus) {
			return NewHTTPError(http.StatusBadRequest, "invalid transition")
		}

		// 争議が開いている注文はキャンセル・返金で触らない。出口は裁定だけ。
		if (newStatus == model.OrderStatusCancelled || newStatus == model.OrderStatusRefunded) && o.Dispute.Status.Blocks() {
			return NewHTTPError(http.StatusConflict, "dispute in progress")
		}

		now := u.clock.Now()

		// キャンセル・返金のうち発送前だけ在庫を戻す（発送後は商品が外にある）
		if (newStatus == model.OrderStatusCancelled || newStatus == model.OrderStatusRefunded) && !o.Shipping.Shipped() {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
					ProductID:   it.ProductID,
					ActorUserID: actorAdminUserID,
					Delta:       it.Quantity,
					Reason:      "order " + string(newStatus) + " by admin",
					CreatedAt:   now,
				}); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				if err := r.Inventory().SyncAvailability(ctx, it.ProductID); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		// ステータス更新
		beforeStatus := string(o.Status)
		ok, err := r.Orders().UpdateStatus(ctx, orderID, o.Status, newStatus)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, "order changed concurrently")
		}

		// キャンセル・返金で預り金が残っていれば買手へ返す
		if newStatus == model.OrderStatusCancelled || newStatus == model.OrderStatusRefunded {
			if o.Escrow.Status == model.EscrowStatusHeld {
				ok, err := r.Orders().RefundEscrow(ctx, orderID, o.Total, "order "+string(newStatus)+" by admin", now)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				if !ok {
					return NewHTTPError(http.StatusConflict, "escrow changed concurrently")
				}
				refunded = true
			}
		}

		if err := r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorAdmin,
			AuthorID:   actorAdminUserID,
			Body:       "status changed to " + string(newStatus),
			CreatedAt:  now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// ★監査ログ（UPDATE_ORDER_STATUS）
		beforeJSON := `{"status":"` + beforeStatus + `"}`
		afterJSON := `{"status":"` + string(newStatus) + `"}`
		if err := u.auditRepo.Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		updated = o
		updatedAt = now
		return nil
	})

	if err != nil {
		return err
	}

	if u.events != nil && refunded {
		u.events.EscrowRefunded(ctx, updated, updated.Total, "order "+string(newStatus)+" by admin", updatedAt)
	}
	return nil
}

// 入金の手動確認（ゲートウェイのイベントが届かなかったときの救済）
func (u *AdminOrderUsecase) ConfirmPayment(ctx context.Context, actorAdminUserID int64, orderID int64, paymentRef string) error {
	if actorAdminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" || len(paymentRef) > 100 {
		return NewHTTPError(http.StatusBadRequest, "payment_ref required")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		now := u.clock.Now()
		ok, err := r.Orders().ConfirmPayment(ctx, orderID, paymentRef, now)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusBadRequest, "payment already confirmed or order not payable")
		}

		if err := r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorAdmin,
			AuthorID:   actorAdminUserID,
			Body:       "payment confirmed manually",
			CreatedAt:  now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// ★監査ログ（CONFIRM_PAYMENT）
		beforeJSON := `{"status":"` + string(o.Status) + `","escrow_status":"` + string(o.Escrow.Status) + `"}`
		afterJSON := `{"status":"payment_confirmed","escrow_status":"held","payment_ref":"` + paymentRef + `"}`
		if err := u.auditRepo.Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionConfirmPayment,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
}

func isOrderStatus(s string) bool {
	switch model.OrderStatus(s) {
	case model.OrderStatusPendingPayment, model.OrderStatusPaymentConfirmed,
		model.OrderStatusProcessing, model.OrderStatusShipped,
		model.OrderStatusOutForDelivery, model.OrderStatusDelivered,
		model.OrderStatusCancelled, model.OrderStatusRefunded:
		return true
	}
	return false
}
