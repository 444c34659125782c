package kafka

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/event"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// EscrowPublisherはエスクロー確定イベントをKafkaへ流す。
// usecaseのEscrowEventPublisherとして差し込む。
type EscrowPublisher struct {
	released *Producer // escrow.released
	refunded *Producer // escrow.refunded
	producer string    // envelopeのproducer名
}

func NewEscrowPublisher(released, refunded *Producer, producerName string) *EscrowPublisher {
	return &EscrowPublisher{released: released, refunded: refunded, producer: producerName}
}

func (p *EscrowPublisher) EscrowReleased(ctx context.Context, o model.Order, releasedBy string, at time.Time) {
	env := event.Envelope{
		EventID:       uuid.NewString(),
		EventType:     event.EventEscrowReleased,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      p.producer,
		CorrelationID: o.OrderNumber,
		Payload: MustMarshal(event.EscrowReleasedPayload{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			SellerID:    o.SellerID,
			Amount:      o.Total,
			ReleasedBy:  releasedBy,
			ReleasedAt:  at.UTC(),
		}),
	}
	p.released.Publish(event.PartitionKey(o.OrderNumber), MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(event.EventEscrowReleased)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (p *EscrowPublisher) EscrowRefunded(ctx context.Context, o model.Order, amount int64, reason string, at time.Time) {
	env := event.Envelope{
		EventID:       uuid.NewString(),
		EventType:     event.EventEscrowRefunded,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      p.producer,
		CorrelationID: o.OrderNumber,
		Payload: MustMarshal(event.EscrowRefundedPayload{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			BuyerID:     o.BuyerID,
			Amount:      amount,
			Reason:      reason,
			RefundedAt:  at.UTC(),
		}),
	}
	p.refunded.Publish(event.PartitionKey(o.OrderNumber), MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(event.EventEscrowRefunded)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
