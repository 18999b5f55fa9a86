package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// PushSender 真正的推送通道（APNs / FCM 等）。
type PushSender interface {
	Send(ctx context.Context, msg PushBatchMessage) error
}

// LogSender 只打日志的推送通道。
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg PushBatchMessage) error {
	log.Printf("push sent promo id=%d users=%d", msg.PromoID, len(msg.UserIDs))
	return nil
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer 消费推送批次并交给 PushSender。
// 推送失败只记录日志，不重试。
type Consumer struct {
	r      messageReader
	sender PushSender
}

func NewConsumer(brokers []string, topic, groupID string, sender PushSender) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		sender: sender,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}
		if err := c.handleMessage(ctx, m); err != nil {
			log.Printf("push consumer offset=%d: %v", m.Offset, err)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, m kafka.Message) error {
	var msg PushBatchMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.sender.Send(ctx, msg)
}
