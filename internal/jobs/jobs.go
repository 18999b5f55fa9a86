package jobs

import (
	"context"
	"time"

	"flash_promo/internal/notify"
	"flash_promo/internal/promo"
	"flash_promo/internal/reservation"
	"flash_promo/internal/tasks"
)

type Deps struct {
	Scheduler *promo.Scheduler
	FanOut    *notify.FanOut
	Engine    *reservation.Engine
}

// Register 把具名任务绑定到各组件。
func Register(reg *tasks.Registry, d Deps) {
	reg.Register(tasks.JobActivatePromos, func(ctx context.Context, _ tasks.Job) error {
		_, err := d.Scheduler.Tick(ctx)
		return err
	})
	reg.Register(tasks.JobNotifyPromo, func(ctx context.Context, job tasks.Job) error {
		var p tasks.NotifyPromoPayload
		if err := job.Decode(&p); err != nil {
			return err
		}
		_, err := d.FanOut.NotifyPromo(ctx, p.PromoID)
		return err
	})
	reg.Register(tasks.JobSendPushBatch, func(ctx context.Context, job tasks.Job) error {
		var p tasks.SendPushBatchPayload
		if err := job.Decode(&p); err != nil {
			return err
		}
		return d.FanOut.SendPushBatch(ctx, p.PromoID, p.UserIDs)
	})
	reg.Register(tasks.JobNotifyActivePromos, func(ctx context.Context, _ tasks.Job) error {
		_, err := d.FanOut.NotifyActivePromos(ctx)
		return err
	})
	reg.Register(tasks.JobSweepExpired, func(ctx context.Context, _ tasks.Job) error {
		_, err := d.Engine.SweepExpired(ctx)
		return err
	})
}

type Intervals struct {
	Lifecycle time.Duration
	Notify    time.Duration
	Sweep     time.Duration
}

// Schedule 周期触发项：生命周期、全量重扫推送、过期预占回收。
func Schedule(iv Intervals) []tasks.Entry {
	return []tasks.Entry{
		{Every: iv.Lifecycle, Job: tasks.ActivatePromos},
		{Every: iv.Notify, Job: tasks.NotifyActivePromos},
		{Every: iv.Sweep, Job: tasks.SweepExpired},
	}
}
