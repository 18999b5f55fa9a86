package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const defaultMaxDeliveries = 5

// StreamQueue 基于 Redis Stream + 消费者组的跨进程任务队列。
// 语义：处理成功后才 ACK；失败的消息留在 pending 里重试，
// 投递次数（XPENDING）达到上限后 ACK 丢弃，由周期任务兜底。
type StreamQueue struct {
	rdb *rd.Client
	reg *Registry

	stream   string
	group    string
	consumer string

	maxDeliveries int
}

func NewStreamQueue(rdb *rd.Client, reg *Registry, stream, group, consumer string) *StreamQueue {
	return &StreamQueue{
		rdb:           rdb,
		reg:           reg,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		maxDeliveries: defaultMaxDeliveries,
	}
}

// Enqueue 追加到 Stream。
func (q *StreamQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job = withID(job)
	}
	err := q.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: q.stream,
		Values: []interface{}{
			"id", job.ID,
			"name", job.Name,
			"payload", string(job.Payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Name, err)
	}
	return nil
}

// Run 消费循环，阻塞到 ctx 取消。
func (q *StreamQueue) Run(ctx context.Context) error {
	if err := q.ensureGroup(ctx); err != nil {
		return fmt.Errorf("task stream ensure group: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		// 先处理本消费者名下的 pending，再读新消息。
		msgs, err := q.readGroup(ctx, "0", 0)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Printf("task stream read pending: %v", err)
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(msgs) == 0 {
			msgs, err = q.readGroup(ctx, ">", 2*time.Second)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return nil
				}
				log.Printf("task stream read new: %v", err)
				time.Sleep(300 * time.Millisecond)
				continue
			}
		}

		for _, xm := range msgs {
			if err := q.processOne(ctx, xm); err != nil {
				log.Printf("task stream message id=%s: %v", xm.ID, err)
				time.Sleep(200 * time.Millisecond)
				break
			}
		}
	}
}

func (q *StreamQueue) ensureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (q *StreamQueue) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := q.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, streamID},
		Count:    16,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (q *StreamQueue) processOne(ctx context.Context, xm rd.XMessage) error {
	job, err := parseJob(xm.Values)
	if err != nil {
		// 脏消息直接 ACK 丢弃，避免阻塞队列。
		if ackErr := q.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	err = q.reg.Dispatch(ctx, job)
	if err == nil {
		return q.ackAndDelete(ctx, xm.ID)
	}
	if errors.Is(err, ErrUnknownJob) {
		log.Printf("task stream drop id=%s: %v", xm.ID, err)
		return q.ackAndDelete(ctx, xm.ID)
	}

	n, perr := q.deliveries(ctx, xm.ID)
	if perr != nil {
		return fmt.Errorf("%s: %w (pending lookup: %v)", job.Name, err, perr)
	}
	if n >= q.maxDeliveries {
		log.Printf("task stream give up %s id=%s after %d deliveries: %v", job.Name, xm.ID, n, err)
		return q.ackAndDelete(ctx, xm.ID)
	}
	return fmt.Errorf("%s: %w", job.Name, err)
}

// deliveries 读取 XPENDING 里的投递次数；计数在 Redis 侧，重启或换消费者后依然有效。
func (q *StreamQueue) deliveries(ctx context.Context, id string) (int, error) {
	pending, err := q.rdb.XPendingExt(ctx, &rd.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return int(pending[0].RetryCount), nil
}

func (q *StreamQueue) ackAndDelete(ctx context.Context, id string) error {
	pipe := q.rdb.TxPipeline()
	pipe.XAck(ctx, q.stream, q.group, id)
	pipe.XDel(ctx, q.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parseJob(values map[string]interface{}) (Job, error) {
	id, err := getStreamString(values, "id")
	if err != nil {
		return Job{}, err
	}
	name, err := getStreamString(values, "name")
	if err != nil {
		return Job{}, err
	}
	payload, err := getStreamString(values, "payload")
	if err != nil {
		return Job{}, err
	}

	job := Job{ID: id, Name: name}
	if payload != "" {
		job.Payload = []byte(payload)
	}
	if err := job.Validate(); err != nil {
		return Job{}, err
	}
	return job, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
