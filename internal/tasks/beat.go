package tasks

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Locker 分布式互斥。Acquire 成功返回 true；锁在 ttl 后自动失效。
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Entry 一个周期触发项。
type Entry struct {
	Every time.Duration
	Job   func() Job
}

// Beat 周期性投递任务。
// 配置了 Locker 时，每个周期只有拿到锁的副本投递，多副本部署不会重复触发。
type Beat struct {
	q       Enqueuer
	locker  Locker
	entries []Entry
}

func NewBeat(q Enqueuer, locker Locker, entries ...Entry) *Beat {
	return &Beat{q: q, locker: locker, entries: entries}
}

// Run 每个 Entry 一个 ticker，阻塞到 ctx 取消。
func (b *Beat) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range b.entries {
		if e.Every <= 0 || e.Job == nil {
			continue
		}
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			t := time.NewTicker(e.Every)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					b.Fire(ctx, e)
				}
			}
		}(e)
	}
	wg.Wait()
}

// Fire 投递一次；拿不到锁时跳过，返回是否真正投递。
func (b *Beat) Fire(ctx context.Context, e Entry) bool {
	job := e.Job()
	if b.locker != nil {
		// 锁比周期略短，保证下一个周期能被重新抢到
		ttl := e.Every - e.Every/10
		if ttl <= 0 {
			ttl = e.Every
		}
		ok, err := b.locker.Acquire(ctx, "beat:"+job.Name, ttl)
		if err != nil {
			log.Printf("beat lock %s: %v", job.Name, err)
			return false
		}
		if !ok {
			return false
		}
	}
	if err := b.q.Enqueue(ctx, job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			log.Printf("beat %s skipped: queue full", job.Name)
		} else {
			log.Printf("beat enqueue %s: %v", job.Name, err)
		}
		return false
	}
	return true
}
