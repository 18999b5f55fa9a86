package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 封装 Kafka 写入器，作为推送下游（满足 notify.Dispatcher）。
type Producer struct {
	w   messageWriter
	now func() time.Time
}

// NewProducer 创建生产者并配置可靠性参数：
// - Hash + Key: 同一活动的批次落到同一分区。
// - RequireAll: 等待 ISR 副本确认，降低消息丢失风险。
// - MaxAttempts/Timeout: 控制重试与超时边界。
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
		now: time.Now,
	}
}

// Close 释放 writer 资源。
func (p *Producer) Close() error { return p.w.Close() }

// Publish 同步写入一条推送批次，以 promo_id 作为 Kafka key。
func (p *Producer) Publish(ctx context.Context, msg PushBatchMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(msg.PromoID), 10)),
		Value: b,
	})
}

// Dispatch 推送一批用户。
func (p *Producer) Dispatch(ctx context.Context, promoID uint, userIDs []int64) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return p.Publish(ctx, PushBatchMessage{
		PromoID: promoID,
		UserIDs: userIDs,
		SentAt:  p.now().Unix(),
	})
}
