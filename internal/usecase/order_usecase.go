package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 返金申請は配達から30日まで。自動釈放の日数と違い固定値。
const RefundWindow = 30 * 24 * time.Hour

// 1注文に入れられる明細の上限
const maxOrderItems = 50

// 税計算は外部サービスの差し替え前提。nilなら税0で動く。
type TaxCalculator interface {
	Tax(ctx context.Context, subtotal int64, addr model.OrderAddress) (int64, error)
}

// 返金申請できるか。time依存なので毎回計算する（キャッシュしない）。
func CanRequestRefund(o model.Order, now time.Time) bool {
	if o.Status != model.OrderStatusDelivered || o.Shipping.DeliveredAt == nil {
		return false
	}
	if o.Escrow.Status != model.EscrowStatusHeld {
		return false
	}
	return now.Sub(*o.Shipping.DeliveredAt) <= RefundWindow
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	addresses repo.AddressRepository
	sellers   repo.SellerRepository
	clock     Clock
	tax       TaxCalculator
	events    EscrowEventPublisher

	currency              string
	shippingFlatFee       int64
	freeShippingThreshold int64
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	addresses repo.AddressRepository,
	sellers repo.SellerRepository,
	clock Clock,
	tax TaxCalculator,
	events EscrowEventPublisher,
	cfg config.Config,
) *OrderUsecase {
	return &OrderUsecase{
		tx:                    tx,
		addresses:             addresses,
		sellers:               sellers,
		clock:                 clock,
		tax:                   tax,
		events:                events,
		currency:              cfg.Currency,
		shippingFlatFee:       cfg.ShippingFlatFee,
		freeShippingThreshold: cfg.FreeShippingThreshold,
	}
}

type PlaceOrderItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type PlaceOrderInput struct {
	AddressID      int64
	PaymentMethod  string
	Items          []PlaceOrderItemInput
	IdempotencyKey string
}

type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	ImageURL  string `json:"image_url,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type OrderOutput struct {
	ID          int64  `json:"id"`
	OrderNumber string `json:"order_number"`
	BuyerID     int64  `json:"buyer_id"`
	SellerID    int64  `json:"seller_id"`
	Status      string `json:"status"`

	Subtotal    int64  `json:"subtotal"`
	ShippingFee int64  `json:"shipping_fee"`
	Tax         int64  `json:"tax"`
	Discount    int64  `json:"discount"`
	Total       int64  `json:"total"`
	Currency    string `json:"currency"`

	Address  model.OrderAddress `json:"address"`
	Payment  model.PaymentInfo  `json:"payment"`
	Shipping model.ShippingInfo `json:"shipping"`
	Escrow   model.Escrow       `json:"escrow"`
	Dispute  *model.Dispute     `json:"dispute,omitempty"`
	Refund   *model.Refund      `json:"refund,omitempty"`

	CanRequestRefund bool `json:"can_request_refund"`

	CreatedAt time.Time         `json:"created_at"`
	Items     []OrderItemOutput `json:"items,omitempty"`
	Notes     []model.OrderNote `json:"notes,omitempty"`
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, buyerID int64, in PlaceOrderInput) (OrderOutput, error) {
	if buyerID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if in.AddressID <= 0 {
		return OrderOutput{}, fmt.Errorf("%w: invalid address_id", ErrValidation)
	}
	if len(in.Items) == 0 {
		return OrderOutput{}, fmt.Errorf("%w: items required", ErrValidation)
	}
	if len(in.Items) > maxOrderItems {
		return OrderOutput{}, fmt.Errorf("%w: too many items", ErrValidation)
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return OrderOutput{}, fmt.Errorf("%w: invalid product_id", ErrValidation)
		}
		if it.Quantity <= 0 {
			return OrderOutput{}, fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
		}
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" || len(method) > 30 {
		return OrderOutput{}, fmt.Errorf("%w: invalid payment_method", ErrValidation)
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, fmt.Errorf("%w: invalid idempotency_key", ErrValidation)
	}

	//address_idの存在確認＋所有チェック
	addr, err := u.addresses.FindByID(ctx, in.AddressID)
	if err != nil {
		if errors.Is(err, repo.ErrAddressNotFound) {
			return OrderOutput{}, ErrNotFound
		}
		return OrderOutput{}, ErrInternal
	}
	if addr.UserID != buyerID {
		return OrderOutput{}, ErrAccessDenied
	}

	var out OrderOutput

	//注文処理はトランザクション。在庫減算が1件でも失敗したら全部戻す。
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, buyerID, key)
		if err != nil {
			return err
		}
		if found {
			items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return err
			}
			out = toOrderOutput(existing, items, nil, u.clock.Now())
			return nil
		}

		var sellerID int64
		orderItems := make([]model.OrderItem, 0, len(in.Items))
		var subtotal int64 = 0
		now := u.clock.Now()

		for _, it := range in.Items {
			p, err := r.Products().FindByID(ctx, it.ProductID)
			if err == repo.ErrNotFound {
				return fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
			}
			if err != nil {
				return err
			}
			if !p.IsPurchasable() {
				return fmt.Errorf("%w: product %d", ErrProductUnavailable, p.ID)
			}

			// 出品者は verified かつ active でないと受注できない
			if sellerID == 0 {
				s, err := r.Sellers().FindByID(ctx, p.SellerID)
				if err == repo.ErrNotFound {
					return fmt.Errorf("%w: seller missing", ErrProductUnavailable)
				}
				if err != nil {
					return err
				}
				if !s.CanSell() {
					return fmt.Errorf("%w: seller not verified", ErrProductUnavailable)
				}
				sellerID = p.SellerID
			} else if p.SellerID != sellerID {
				// 1注文1出品者
				return fmt.Errorf("%w: items must belong to a single seller", ErrValidation)
			}

			//在庫減算（足りないなら false）
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: product %d", ErrInsufficientStock, it.ProductID)
			}
			if err := r.Inventory().SyncAvailability(ctx, it.ProductID); err != nil {
				return err
			}

			//スナップショット
			lineTotal := p.Price * it.Quantity
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           it.ProductID,
				ProductNameSnapshot: p.Name,
				SKUSnapshot:         p.SKU,
				ImageURLSnapshot:    p.ImageURL,
				UnitPriceSnapshot:   p.Price,
				Quantity:            it.Quantity,
				LineTotal:           lineTotal,
				CreatedAt:           now,
			})
			subtotal += lineTotal
		}

		shippingFee := u.shippingFee(subtotal)

		var tax int64 = 0
		if u.tax != nil {
			tax, err = u.tax.Tax(ctx, subtotal, addr.Snapshot())
			if err != nil {
				return err
			}
		}

		total := subtotal + shippingFee + tax

		orderNumber, err := newOrderNumber(ctx, r, now)
		if err != nil {
			return err
		}

		order := model.Order{
			OrderNumber: orderNumber,
			BuyerID:     buyerID,
			SellerID:    sellerID,
			Status:      model.OrderStatusPendingPayment,
			Subtotal:    subtotal,
			ShippingFee: shippingFee,
			Tax:         tax,
			Discount:    0,
			Total:       total,
			Currency:    u.currency,
			Address:     addr.Snapshot(),
			Payment: model.PaymentInfo{
				Method: method,
			},
			Escrow: model.Escrow{
				Status: model.EscrowStatusPending,
			},
			IdempotencyKey: key,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			//競合（同時に同じキーが入った等）はもう一回検索して同じ結果を返す
			ex2, found2, err2 := r.Orders().FindByIdempotencyKey(ctx, buyerID, key)
			if err2 == nil && found2 {
				items2, err3 := r.OrderItems().ListByOrderID(ctx, ex2.ID)
				if err3 != nil {
					return err3
				}
				out = toOrderOutput(ex2, items2, nil, u.clock.Now())
				return nil
			}
			return fmt.Errorf("%w: idempotency key", ErrConflict)
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return err
		}

		if err := r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorBuyer,
			AuthorID:   buyerID,
			Body:       "order placed",
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		order.ID = orderID
		out = toOrderOutput(order, orderItems, nil, now)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 小計がしきい値以上なら送料無料
func (u *OrderUsecase) shippingFee(subtotal int64) int64 {
	if subtotal >= u.freeShippingThreshold {
		return 0
	}
	return u.shippingFlatFee
}

// 注文番号はBD+unix秒下6桁+乱数3桁。衝突したら引き直す。
func newOrderNumber(ctx context.Context, r repo.TxRepos, now time.Time) (string, error) {
	for i := 0; i < 5; i++ {
		n := fmt.Sprintf("BD%06d%03d", now.Unix()%1000000, rand.Intn(1000))
		_, found, err := r.Orders().FindByOrderNumber(ctx, n)
		if err != nil {
			return "", err
		}
		if !found {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: order number", ErrConflict)
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, buyerID int64, page, limit int) ([]OrderOutput, int64, error) {
	if buyerID <= 0 {
		return nil, 0, ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var outs []OrderOutput
	var total int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, t, err := r.Orders().ListByBuyerID(ctx, buyerID, page, limit)
		if err != nil {
			return err
		}
		total = t

		now := u.clock.Now()
		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			outs = append(outs, toOrderOutput(o, nil, nil, now))
		}
		return nil
	})

	if err != nil {
		return nil, 0, err
	}
	return outs, total, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, buyerID int64, orderID int64) (OrderOutput, error) {
	if buyerID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, fmt.Errorf("%w: invalid id", ErrValidation)
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if o.BuyerID != buyerID {
			//他人の注文は「存在しない扱い」にする
			return ErrNotFound
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		notes, err := r.OrderNotes().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}

		out = toOrderOutput(o, items, notes, u.clock.Now())
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 出品者側の受注一覧。actorはSELLERロールのユーザー。
func (u *OrderUsecase) ListSellerOrders(ctx context.Context, sellerUserID int64, page, limit int) ([]OrderOutput, int64, error) {
	if sellerUserID <= 0 {
		return nil, 0, ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	seller, err := u.sellers.FindByUserID(ctx, sellerUserID)
	if err == repo.ErrNotFound {
		return nil, 0, ErrAccessDenied
	}
	if err != nil {
		return nil, 0, err
	}

	var outs []OrderOutput
	var total int64

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, t, err := r.Orders().ListBySellerID(ctx, seller.ID, page, limit)
		if err != nil {
			return err
		}
		total = t

		now := u.clock.Now()
		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			outs = append(outs, toOrderOutput(o, nil, nil, now))
		}
		return nil
	})

	if err != nil {
		return nil, 0, err
	}
	return outs, total, nil
}

func (u *OrderUsecase) GetSellerOrderDetail(ctx context.Context, sellerUserID int64, orderID int64) (OrderOutput, error) {
	if sellerUserID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, fmt.Errorf("%w: invalid id", ErrValidation)
	}

	seller, err := u.sellers.FindByUserID(ctx, sellerUserID)
	if err == repo.ErrNotFound {
		return OrderOutput{}, ErrAccessDenied
	}
	if err != nil {
		return OrderOutput{}, err
	}

	var out OrderOutput

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
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

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		notes, err := r.OrderNotes().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}

		out = toOrderOutput(o, items, notes, u.clock.Now())
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 買手キャンセル。processing までで、全明細を在庫へ戻す。
// 支払済み（held）のときはエスクローも返金で閉じる。
func (u *OrderUsecase) CancelOrder(ctx context.Context, buyerID int64, orderID int64, reason string) error {
	if buyerID <= 0 {
		return ErrUnauthorized
	}
	if orderID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}

	var cancelled model.Order
	var refunded bool
	var cancelledAt time.Time

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

		switch o.Status {
		case model.OrderStatusPendingPayment, model.OrderStatusPaymentConfirmed, model.OrderStatusProcessing:
		default:
			return ErrInvalidStatus
		}

		// 争議が開いている間は通常キャンセルを通さない。出口は裁定だけ。
		if o.Dispute.Status.Blocks() {
			return fmt.Errorf("%w: dispute in progress", ErrConflict)
		}

		// 発送準備中までしかキャンセルできない。CASで競合（発送と同時等）も弾く。
		ok, err := r.Orders().UpdateStatus(ctx, orderID, o.Status, model.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStatus
		}

		now := u.clock.Now()

		// 支払済みなら預り金を返金で閉じる（ゲートウェイ返金扱い）
		if o.Escrow.Status == model.EscrowStatusHeld {
			ok, err := r.Orders().RefundEscrow(ctx, orderID, o.Total, "order cancelled", now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidEscrowTransition
			}
			refunded = true
		}

		//全明細を在庫へ戻す
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID:   it.ProductID,
				ActorUserID: buyerID,
				Delta:       it.Quantity,
				Reason:      "order cancelled",
				CreatedAt:   now,
			}); err != nil {
				return err
			}
			if err := r.Inventory().SyncAvailability(ctx, it.ProductID); err != nil {
				return err
			}
		}

		body := "order cancelled"
		if strings.TrimSpace(reason) != "" {
			body = "order cancelled: " + strings.TrimSpace(reason)
		}
		if err := r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorBuyer,
			AuthorID:   buyerID,
			Body:       body,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		cancelled = o
		cancelledAt = now
		return nil
	})

	if err != nil {
		return err
	}

	if u.events != nil && refunded {
		u.events.EscrowRefunded(ctx, cancelled, cancelled.Total, "order cancelled", cancelledAt)
	}
	return nil
}

// 返金申請。配達から30日以内かつエスクローheldの間だけ。
// エスクロー自体は動かさない（実際の返金は管理者裁定かゲートウェイ）。
func (u *OrderUsecase) RequestRefund(ctx context.Context, buyerID int64, orderID int64, reason string) error {
	if buyerID <= 0 {
		return ErrUnauthorized
	}
	if orderID <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" || len(reason) > 255 {
		return fmt.Errorf("%w: reason required", ErrValidation)
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
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

		now := u.clock.Now()
		if !CanRequestRefund(o, now) {
			return ErrRefundNotAllowed
		}

		ok, err := r.Orders().MarkRefundRequested(ctx, orderID, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			// 二重申請か、先にエスクローが動いた
			return ErrRefundNotAllowed
		}

		return r.OrderNotes().Append(ctx, model.OrderNote{
			OrderID:    orderID,
			AuthorRole: model.NoteAuthorBuyer,
			AuthorID:   buyerID,
			Body:       "refund requested: " + reason,
			CreatedAt:  now,
		})
	})
}

func toOrderOutput(o model.Order, items []model.OrderItem, notes []model.OrderNote, now time.Time) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			SKU:       it.SKUSnapshot,
			ImageURL:  it.ImageURLSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
		})
	}

	out := OrderOutput{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		BuyerID:          o.BuyerID,
		SellerID:         o.SellerID,
		Status:           string(o.Status),
		Subtotal:         o.Subtotal,
		ShippingFee:      o.ShippingFee,
		Tax:              o.Tax,
		Discount:         o.Discount,
		Total:            o.Total,
		Currency:         o.Currency,
		Address:          o.Address,
		Payment:          o.Payment,
		Shipping:         o.Shipping,
		Escrow:           o.Escrow,
		CanRequestRefund: CanRequestRefund(o, now),
		CreatedAt:        o.CreatedAt,
		Items:            outItems,
		Notes:            notes,
	}

	// 未申立・未申請のサブレコードはレスポンスに含めない
	if o.Dispute.IsDisputed {
		d := o.Dispute
		out.Dispute = &d
	}
	if o.Refund.IsRefunded || o.Refund.RequestedAt != nil {
		rf := o.Refund
		out.Refund = &rf
	}

	return out
}
