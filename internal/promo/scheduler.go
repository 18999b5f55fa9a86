package promo

import (
	"context"
	"log"
	"time"

	"flash_promo/internal/clock"
	"flash_promo/internal/model"
	"flash_promo/internal/tasks"
)

type LifecycleRepository interface {
	ListPromosToActivate(ctx context.Context, now time.Time) ([]model.FlashPromo, error)
	ActivatePromo(ctx context.Context, id uint) (bool, error)
	FinishPromos(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler 活动生命周期：SCHEDULED -> ACTIVE -> FINISHED。
type Scheduler struct {
	repo  LifecycleRepository
	queue tasks.Enqueuer
	clock clock.Clock
}

func NewScheduler(repo LifecycleRepository, queue tasks.Enqueuer, clk clock.Clock) *Scheduler {
	return &Scheduler{repo: repo, queue: queue, clock: clk}
}

// TickResult 一次调度的统计。
type TickResult struct {
	Activated int
	Finished  int64
}

// Tick 激活到点的活动并为每个新激活的活动投递一次 notifyPromo，
// 再把已过期的 ACTIVE 活动批量置为 FINISHED。
// 单条失败只记录日志；重复执行时条件更新保证同一活动只激活、只投递一次。
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	now := s.clock.Now()
	var out TickResult

	due, err := s.repo.ListPromosToActivate(ctx, now)
	if err != nil {
		return out, err
	}
	for _, p := range due {
		ok, err := s.repo.ActivatePromo(ctx, p.ID)
		if err != nil {
			log.Printf("scheduler activate promo id=%d: %v", p.ID, err)
			continue
		}
		if !ok {
			continue
		}
		out.Activated++
		// 投递失败由 notifyActivePromos 的周期重扫补发
		if err := s.queue.Enqueue(ctx, tasks.NotifyPromo(p.ID)); err != nil {
			log.Printf("scheduler enqueue notify promo id=%d: %v", p.ID, err)
		}
	}

	n, err := s.repo.FinishPromos(ctx, now)
	if err != nil {
		log.Printf("scheduler finish promos: %v", err)
		return out, err
	}
	out.Finished = n

	if out.Activated > 0 || out.Finished > 0 {
		log.Printf("scheduler tick: activated=%d finished=%d", out.Activated, out.Finished)
	}
	return out, nil
}
