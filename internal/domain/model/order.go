package model

import "time"

type OrderStatus string

const (
	OrderStatusPendingPayment   OrderStatus = "pending_payment"
	OrderStatusPaymentConfirmed OrderStatus = "payment_confirmed"
	OrderStatusProcessing       OrderStatus = "processing"
	OrderStatusShipped          OrderStatus = "shipped"
	OrderStatusOutForDelivery   OrderStatus = "out_for_delivery"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCancelled        OrderStatus = "cancelled"
	OrderStatusRefunded         OrderStatus = "refunded"
)

// 配送前の状態からは cancelled / refunded にも遷移できる。
// delivered / cancelled / refunded は終端。
var orderValidNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPendingPayment:   {OrderStatusPaymentConfirmed: true, OrderStatusCancelled: true, OrderStatusRefunded: true},
	OrderStatusPaymentConfirmed: {OrderStatusProcessing: true, OrderStatusCancelled: true, OrderStatusRefunded: true},
	OrderStatusProcessing:       {OrderStatusShipped: true, OrderStatusCancelled: true, OrderStatusRefunded: true},
	OrderStatusShipped:          {OrderStatusOutForDelivery: true, OrderStatusDelivered: true, OrderStatusCancelled: true, OrderStatusRefunded: true},
	OrderStatusOutForDelivery:   {OrderStatusDelivered: true, OrderStatusCancelled: true, OrderStatusRefunded: true},
	OrderStatusDelivered:        {},
	OrderStatusCancelled:        {},
	OrderStatusRefunded:         {},
}

func CanTransitionOrder(from, to OrderStatus) bool {
	return orderValidNext[from][to]
}

func (s OrderStatus) IsPreDelivery() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusPaymentConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusOutForDelivery:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderValidNext[s]) == 0
}

// 注文時点の配送先スナップショット。住所を後から編集しても注文側は変わらない。
type OrderAddress struct {
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code"`
	Prefecture string `gorm:"type:varchar(100)" json:"prefecture"`
	City       string `gorm:"type:varchar(255)" json:"city"`
	Line1      string `gorm:"type:varchar(255)" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
	Name       string `gorm:"type:varchar(255)" json:"name"`
	Phone      string `gorm:"type:varchar(30)" json:"phone"`
}

type PaymentInfo struct {
	Method      string     `gorm:"type:varchar(30)" json:"method"`
	Reference   string     `gorm:"type:varchar(255)" json:"reference,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

type ShippingInfo struct {
	Carrier        string     `gorm:"type:varchar(100)" json:"carrier,omitempty"`
	TrackingNumber string     `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

func (s ShippingInfo) Shipped() bool {
	return s.ShippedAt != nil
}

type Order struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string      `gorm:"type:varchar(20);not null;uniqueIndex" json:"order_number"`
	BuyerID     int64       `gorm:"not null;index" json:"buyer_id"`
	SellerID    int64       `gorm:"not null;index" json:"seller_id"`
	Status      OrderStatus `gorm:"type:varchar(30);not null;index" json:"status"`

	// 金額は最小通貨単位。Total = Subtotal + ShippingFee + Tax - Discount
	Subtotal    int64  `gorm:"not null" json:"subtotal"`
	ShippingFee int64  `gorm:"not null" json:"shipping_fee"`
	Tax         int64  `gorm:"not null" json:"tax"`
	Discount    int64  `gorm:"not null" json:"discount"`
	Total       int64  `gorm:"not null" json:"total"`
	Currency    string `gorm:"type:varchar(3);not null" json:"currency"`

	Address  OrderAddress `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	Payment  PaymentInfo  `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	Shipping ShippingInfo `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping"`
	Escrow   Escrow       `gorm:"embedded;embeddedPrefix:escrow_" json:"escrow"`
	Dispute  Dispute      `gorm:"embedded;embeddedPrefix:dispute_" json:"dispute"`
	Refund   Refund       `gorm:"embedded;embeddedPrefix:refund_" json:"refund"`

	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
