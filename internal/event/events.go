package event

import (
	"encoding/json"
	"time"
)

// Kafkaトピック
const (
	TopicPaymentConfirmed = "payment.confirmed" // 決済サービス→本体
	TopicEscrowReleased   = "escrow.released"   // 本体→精算サービス
	TopicEscrowRefunded   = "escrow.refunded"   // 本体→精算サービス
)

// イベント種別
const (
	EventPaymentConfirmed = "PaymentConfirmed"
	EventEscrowReleased   = "EscrowReleased"
	EventEscrowRefunded   = "EscrowRefunded"
)

// Envelopeは全イベント共通の外側
type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // 上のconstのどれか
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // 例: "marketplace-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // 注文番号
	Payload       json.RawMessage `json:"payload"`
}

// PaymentConfirmedPayloadは決済確定イベント（受信側）
type PaymentConfirmedPayload struct {
	OrderNumber string `json:"order_number"`
	PaymentRef  string `json:"payment_ref"`
	Amount      int64  `json:"amount"`
}

// EscrowReleasedPayloadは売主への支払確定イベント
type EscrowReleasedPayload struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	SellerID    int64     `json:"seller_id"`
	Amount      int64     `json:"amount"`
	ReleasedBy  string    `json:"released_by"` // buyer / system / admin
	ReleasedAt  time.Time `json:"released_at"`
}

// EscrowRefundedPayloadは買主への返金イベント
type EscrowRefundedPayload struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     int64     `json:"buyer_id"`
	Amount      int64     `json:"amount"`
	Reason      string    `json:"reason"`
	RefundedAt  time.Time `json:"refunded_at"`
}

// PartitionKeyは同一注文のイベント順序を保つためのキー
func PartitionKey(orderNumber string) []byte { return []byte(orderNumber) }
