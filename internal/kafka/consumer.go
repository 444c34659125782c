package kafka

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handlerがnilを返したときだけオフセットをコミットする。
// 恒久的に処理できないメッセージ（ポイズン）はハンドラ側でnilを返して捨てること。
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r *kafka.Reader
}

func NewConsumer(brokers []string, group, topic string) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  group,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Startは1件ずつ取り出して処理する。処理成功までコミットしないので
// 落ちても再起動後に再配送される（at-least-once）。
// ReadMessageはグループ利用時に自動コミットするためFetchMessageを使う。
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := h(ctx, m); err != nil {
			log.Printf("kafka: handle %s offset=%d: %v", m.Topic, m.Offset, err)
			// コミットせず次へ。再配送はリバランス/再起動時
			time.Sleep(200 * time.Millisecond)
			continue
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
