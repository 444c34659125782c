package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// エスクロー確定イベントの出口。Kafka実装は internal/kafka にある。
// nil のときは何も流さない（テストや単体起動）。
type EscrowEventPublisher interface {
	EscrowReleased(ctx context.Context, o model.Order, releasedBy string, at time.Time)
	EscrowRefunded(ctx context.Context, o model.Order, amount int64, reason string, at time.Time)
}

// 支払確認〜配達〜釈放までのエスクロー遷移を扱う。
// 釈放は 買手承認 / 自動釈放 / 管理者裁定 の3経路で、二重釈放は
// リポジトリ側の条件付きUPDATEが防ぐ。
type EscrowUsecase struct {
	tx      repo.TransactionManager
	orders  repo.OrderRepository
	sellers repo.SellerRepository
	clock   Clock
	events  EscrowEventPublisher

	holdDays int
}

func NewEscrowUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	sellers repo.SellerRepository,
	clock Clock,
	events EscrowEventPublisher,
	cfg config.Config,
) *EscrowUsecase {
	return &EscrowUsecase{
		tx:       tx,
		orders:   orders,
		sellers:  sellers,
		clock:    clock,
		events:   events,
		holdDays: cfg.EscrowHoldDays,
	}
}

// 支払確認。pending_payment -> payment_confirmed、エスクロー pending -> held。
// 同じ注文に2回届いても2回目は何もしない。
func (u *EscrowUsecase) ConfirmPayment(ctx context.Context, orderID int64, paymentRef string) error {
	if orderID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" || len(paymentRef) > 100 {
		return fmt.Errorf("%w: invalid payment_ref", ErrValidation)
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		now := u.clock.Now()
		ok, err := r.Orders().ConfirmPayment(ctx, o.ID, paymentRef, now)
		if err != nil {
			return err
		}
		if !ok {
			//既に支払確認済みなら冪等に成功扱い
			if o.Status != model.OrderStatusPendingPayment && o.Escrow.Status != model.EscrowStatusPending {
				return nil
			}
			return ErrInvalidStatus
		}

		return r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    o.ID,
			AuthorRole: model.NoteAuthorSystem,
			Body:       "payment confirmed",
			CreatedAt:  now,
		})
	})
}

// 決済ゲートウェイのイベントは注文番号しか持たないのでこちらを使う。
func (u *EscrowUsecase) ConfirmPaymentByNumber(ctx context.Context, orderNumber, paymentRef string) error {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return fmt.Errorf("%w: order_number required", ErrValidation)
	}

	o, found, err := u.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return u.ConfirmPayment(ctx, o.ID, paymentRef)
}

type FulfillmentInput struct {
	Status         string `json:"status"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

// 出品者による配送状況の前進。processing / shipped / out_for_delivery のみ。
func (u *EscrowUsecase) UpdateFulfillment(ctx context.Context, sellerUserID int64, orderID int64, in FulfillmentInput) error {
	if sellerUserID <= 0 {
		return ErrUnauthorized
	}
	if orderID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}

	seller, err := u.sellers.FindByUserID(ctx, sellerUserID)
	if err == repo.ErrNotFound {
		return ErrAccessDenied
	}
	if err != nil {
		return err
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if o.SellerID != seller.ID {
			return ErrAccessDenied
		}

		now := u.clock.Now()
		var ok bool
		var body string

		switch in.Status {
		case string(model.OrderStatusProcessing):
			ok, err = r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusPaymentConfirmed, model.OrderStatusProcessing)
			body = "order processing"
		case string(model.OrderStatusShipped):
			carrier := strings.TrimSpace(in.Carrier)
			tracking := strings.TrimSpace(in.TrackingNumber)
			if carrier == "" || tracking == "" {
				return fmt.Errorf("%w: carrier and tracking_number required", ErrValidation)
			}
			ok, err = r.Orders().MarkShipped(ctx, orderID, carrier, tracking, now)
			body = "shipped via " + carrier
		case string(model.OrderStatusOutForDelivery):
			ok, err = r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusShipped, model.OrderStatusOutForDelivery)
			body = "out for delivery"
		default:
			return fmt.Errorf("%w: invalid fulfillment status", ErrValidation)
		}

		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStatus
		}

		return r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorSeller,
			AuthorID:   sellerUserID,
			Body:       body,
			CreatedAt:  now,
		})
	})
}

// 配達確定。shipped / out_for_delivery からのみ。
// 配達時刻と自動釈放期限（配達 + holdDays日）を記録する。期限は一度きり。
func (u *EscrowUsecase) ConfirmDelivery(ctx context.Context, sellerUserID int64, orderID int64) error {
	if sellerUserID <= 0 {
		return ErrUnauthorized
	}
	if orderID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}

	seller, err := u.sellers.FindByUserID(ctx, sellerUserID)
	if err == repo.ErrNotFound {
		return ErrAccessDenied
	}
	if err != nil {
		return err
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if o.SellerID != seller.ID {
			return ErrAccessDenied
		}

		// 支払イベントが落ちていた場合、エスクローだけ held へ進めてから確定する
		if o.Escrow.Status == model.EscrowStatusPending {
			if _, err := r.Orders().HoldEscrow(ctx, orderID); err != nil {
				return err
			}
		}

		now := u.clock.Now()
		autoReleaseAt := now.Add(time.Duration(u.holdDays) * 24 * time.Hour)

		ok, err := r.Orders().MarkDelivered(ctx, orderID, now, autoReleaseAt)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStatus
		}

		return r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorSeller,
			AuthorID:   sellerUserID,
			Body:       "delivery confirmed",
			CreatedAt:  now,
		})
	})
}

// 買手による受取承認。held -> released_to_seller（released_by=buyer）。
// 未解決の争議がある間は承認できない。
func (u *EscrowUsecase) ApproveDelivery(ctx context.Context, buyerID int64, orderID int64) error {
	if buyerID <= 0 {
		return ErrUnauthorized
	}
	if orderID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}

	var released model.Order
	var releasedAt time.Time

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if o.BuyerID != buyerID {
			return ErrAccessDenied
		}
		if o.Status != model.OrderStatusDelivered {
			return ErrInvalidStatus
		}

		now := u.clock.Now()
		ok, err := r.Orders().ReleaseEscrow(ctx, orderID, model.EscrowReleasedByBuyer, now, true)
		if err != nil {
			return err
		}
		if !ok {
			//既釈放・既返金・争議中のどれか
			return ErrInvalidEscrowTransition
		}

		if err := r.Sellers().AddSale(ctx, o.SellerID, o.Total); err != nil {
			return err
		}

		if err := r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorBuyer,
			AuthorID:   buyerID,
			Body:       "delivery approved, escrow released",
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		released = o
		releasedAt = now
		return nil
	})

	if err != nil {
		return err
	}

	if u.events != nil {
		u.events.EscrowReleased(ctx, released, model.EscrowReleasedByBuyer, releasedAt)
	}
	return nil
}

// 期限到来分の自動釈放。スケジューラから定期的に呼ばれる。
// 1件ずつ独立したトランザクションで処理し、負けた行（先に買手が承認した等）は飛ばす。
func (u *EscrowUsecase) ReleaseDueEscrows(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	due, err := u.orders.ListDueForRelease(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	released := 0
	var firstErr error

	for _, o := range due {
		won := false
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			ok, err := r.Orders().ReleaseEscrow(ctx, o.ID, model.EscrowReleasedBySystem, now, false)
			if err != nil {
				return err
			}
			if !ok {
				// 一覧取得後に別経路で確定した行
				return nil
			}

			if err := r.Sellers().AddSale(ctx, o.SellerID, o.Total); err != nil {
				return err
			}
			if err := r.OrderNotes().Append(ctx, model.OrderNote{
				OrderID:    o.ID,
				AuthorRole: model.NoteAuthorSystem,
				Body:       "escrow auto-released",
				CreatedAt:  now,
			}); err != nil {
				return err
			}

			won = true
			return nil
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if won {
			released++
			if u.events != nil {
				u.events.EscrowReleased(ctx, o, model.EscrowReleasedBySystem, now)
			}
		}
	}

	return released, firstErr
}
