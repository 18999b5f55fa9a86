package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// 具名任务。所有处理函数都必须幂等：同一任务被重复投递或并发执行时结果不变。
const (
	JobActivatePromos     = "activatePromos"
	JobNotifyPromo        = "notifyPromo"
	JobSendPushBatch      = "sendPushBatch"
	JobNotifyActivePromos = "notifyActivePromos"
	JobSweepExpired       = "sweepExpired"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrQueueFull  = errors.New("task queue full")
)

// Job 一次任务投递。Payload 为 JSON，便于跨进程（Redis Stream）传递。
type Job struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Enqueuer 提交任务，不等待执行结果。
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

type NotifyPromoPayload struct {
	PromoID uint `json:"promo_id"`
}

type SendPushBatchPayload struct {
	PromoID uint    `json:"promo_id"`
	UserIDs []int64 `json:"user_ids"`
}

// NewJob 构造任务，payload 可为 nil。
func NewJob(name string, payload any) (Job, error) {
	job := Job{ID: uuid.NewString(), Name: name}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Job{}, fmt.Errorf("encode %s payload: %w", name, err)
		}
		job.Payload = b
	}
	return job, nil
}

func mustJob(name string, payload any) Job {
	job, err := NewJob(name, payload)
	if err != nil {
		// 这里的 payload 都是固定结构体，编码不会失败
		panic(err)
	}
	return job
}

func ActivatePromos() Job     { return mustJob(JobActivatePromos, nil) }
func NotifyActivePromos() Job { return mustJob(JobNotifyActivePromos, nil) }
func SweepExpired() Job       { return mustJob(JobSweepExpired, nil) }

func NotifyPromo(promoID uint) Job {
	return mustJob(JobNotifyPromo, NotifyPromoPayload{PromoID: promoID})
}

func SendPushBatch(promoID uint, userIDs []int64) Job {
	return mustJob(JobSendPushBatch, SendPushBatchPayload{PromoID: promoID, UserIDs: userIDs})
}

// Decode 解析 payload。
func (j Job) Decode(v any) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s: empty payload", j.Name)
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("job %s: decode payload: %w", j.Name, err)
	}
	return nil
}

// Validate 最小字段校验，防止处理脏消息。
func (j Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	return nil
}
