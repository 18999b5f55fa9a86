package notify

import (
	"context"
	"log"
)

// LogDispatcher 只打日志的推送下游，未配置 Kafka 时使用。
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, promoID uint, userIDs []int64) error {
	log.Printf("push promo id=%d to %d users", promoID, len(userIDs))
	return nil
}
