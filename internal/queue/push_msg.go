package queue

import "fmt"

// PushBatchMessage 写入 Kafka 的推送批次：一个活动 + 一批用户。
type PushBatchMessage struct {
	PromoID uint    `json:"promo_id"`
	UserIDs []int64 `json:"user_ids"`
	SentAt  int64   `json:"sent_at"` // unix 秒
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m PushBatchMessage) Validate() error {
	if m.PromoID == 0 {
		return fmt.Errorf("promo_id is required")
	}
	if len(m.UserIDs) == 0 {
		return fmt.Errorf("user_ids must not be empty")
	}
	for _, id := range m.UserIDs {
		if id <= 0 {
			return fmt.Errorf("invalid user_id %d", id)
		}
	}
	return nil
}
