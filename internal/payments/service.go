package payments

import (
	"context"
	"errors"
	"fmt"
	"log"

	"marketplace/internal/event"
	kafkax "marketplace/internal/kafka"
	"marketplace/internal/redisx"
	"marketplace/internal/usecase"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Serviceはpayment.confirmedイベントを受けて注文を支払確認に進める
type Service struct {
	Escrow      *usecase.EscrowUsecase
	Redis       *redis.Client
	ServiceName string
}

// HandlePaymentConfirmedはコンシューマに差し込むハンドラ。
// 恒久エラー（壊れたメッセージ・未知の注文番号・支払不能な状態）はnilで捨て、
// 一時エラーだけ返して再配送に回す。
// 二重配送は最終的に条件付きUPDATEが冪等に吸収するので、Redisの
// 重複排除は高速化のための前段にすぎない。マークは処理成功後に付ける。
func (s *Service) HandlePaymentConfirmed(ctx context.Context, m kafkago.Message) error {
	var env event.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		log.Printf("payments: broken envelope offset=%d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != event.EventPaymentConfirmed {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[event.PaymentConfirmedPayload](env.Payload)
	if err != nil {
		log.Printf("payments: broken payload event=%s: %v", env.EventID, err)
		return nil
	}

	err = s.Escrow.ConfirmPaymentByNumber(ctx, p.OrderNumber, p.PaymentRef)
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrValidation):
		log.Printf("payments: invalid payload event=%s: %v", env.EventID, err)
	case errors.Is(err, usecase.ErrNotFound):
		// 未知の注文番号。再配送しても直らない
		log.Printf("payments: unknown order %s event=%s", p.OrderNumber, env.EventID)
	case errors.Is(err, usecase.ErrInvalidStatus):
		// 取消済みなど支払えない状態への到着
		log.Printf("payments: order %s not payable event=%s", p.OrderNumber, env.EventID)
	default:
		return err
	}

	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
