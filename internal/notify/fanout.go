package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"flash_promo/internal/clock"
	"flash_promo/internal/eligibility"
	"flash_promo/internal/geo"
	"flash_promo/internal/model"
	"flash_promo/internal/tasks"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize 每批推送的用户数。
const DefaultBatchSize = 1000

const directSendLimit = 4

// Dispatcher 推送下游：(promo, 一批用户) 发出即可，不关心结果。
type Dispatcher interface {
	Dispatch(ctx context.Context, promoID uint, userIDs []int64) error
}

type Repository interface {
	GetPromo(ctx context.Context, id uint) (model.FlashPromo, error)
	ListLivePromos(ctx context.Context, now time.Time) ([]model.FlashPromo, error)
	AudienceCandidates(ctx context.Context, promoID uint, date string, box geo.Box) ([]model.Profile, error)
	ClaimNotifications(ctx context.Context, promoID uint, sentAt time.Time, userIDs []int64) ([]int64, error)
}

// FanOut 计算活动受众、分批投递推送，并写入每日防重记录。
// 防重键为 (user, promo, UTC 日期)，重复执行只会跳过已记录的用户。
type FanOut struct {
	repo       Repository
	filter     *eligibility.Filter
	dispatcher Dispatcher
	queue      tasks.Enqueuer
	clock      clock.Clock
	batchSize  int
}

func NewFanOut(repo Repository, filter *eligibility.Filter, dispatcher Dispatcher, queue tasks.Enqueuer, clk clock.Clock, batchSize int) *FanOut {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &FanOut{
		repo:       repo,
		filter:     filter,
		dispatcher: dispatcher,
		queue:      queue,
		clock:      clk,
		batchSize:  batchSize,
	}
}

// Audience 当天尚未通知、且满足行为与距离条件的用户，按 user_id 升序。
func (f *FanOut) Audience(ctx context.Context, promo model.FlashPromo) ([]int64, error) {
	store := promo.StoreProduct.Store
	box := geo.BoundingBox(store.Point(), f.filter.Radius())
	date := model.DateKey(f.clock.Now())

	candidates, err := f.repo.AudienceCandidates(ctx, promo.ID, date, box)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(candidates))
	for _, p := range candidates {
		// box 只是粗筛，这里按球面距离精确过滤
		if f.filter.IsEligible(p, promo) {
			out = append(out, p.UserID)
		}
	}
	return out, nil
}

// NotifyPromo 为一个 ACTIVE 活动投递 sendPushBatch，返回本次覆盖的用户数。
// 非 ACTIVE 活动直接跳过。队列满时该批改为当场并发发送。
func (f *FanOut) NotifyPromo(ctx context.Context, promoID uint) (int, error) {
	promo, err := f.repo.GetPromo(ctx, promoID)
	if err != nil {
		return 0, err
	}
	if promo.Status != model.PromoActive {
		return 0, nil
	}

	users, err := f.Audience(ctx, promo)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, nil
	}

	var direct [][]int64
	for _, batch := range Batches(users, f.batchSize) {
		if err := f.queue.Enqueue(ctx, tasks.SendPushBatch(promo.ID, batch)); err != nil {
			if !errors.Is(err, tasks.ErrQueueFull) {
				log.Printf("fanout enqueue batch promo id=%d: %v", promo.ID, err)
			}
			direct = append(direct, batch)
		}
	}

	if len(direct) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(directSendLimit)
		for _, batch := range direct {
			batch := batch
			g.Go(func() error {
				return f.SendPushBatch(gctx, promo.ID, batch)
			})
		}
		if err := g.Wait(); err != nil {
			return len(users), err
		}
	}

	log.Printf("fanout promo id=%d: %d users in %d batches", promo.ID, len(users), (len(users)+f.batchSize-1)/f.batchSize)
	return len(users), nil
}

// SendPushBatch 先写入当天的防重记录再发送，只发给本次抢到记录的用户。
// 同一批被并发或重复执行时，每个用户当天最多发一次；下游失败只记录日志，不回滚记录。
func (f *FanOut) SendPushBatch(ctx context.Context, promoID uint, userIDs []int64) error {
	claimed, err := f.repo.ClaimNotifications(ctx, promoID, f.clock.Now(), userIDs)
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}

	if err := f.dispatcher.Dispatch(ctx, promoID, claimed); err != nil {
		log.Printf("fanout dispatch promo id=%d users=%d: %v", promoID, len(claimed), err)
	}
	return nil
}

// NotifyActivePromos 重扫所有进行中的活动，补发漏掉或中断的推送。
func (f *FanOut) NotifyActivePromos(ctx context.Context) (int, error) {
	promos, err := f.repo.ListLivePromos(ctx, f.clock.Now())
	if err != nil {
		return 0, err
	}
	total := 0
	for _, p := range promos {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := f.NotifyPromo(ctx, p.ID)
		if err != nil {
			log.Printf("fanout notify promo id=%d: %v", p.ID, err)
			continue
		}
		total += n
	}
	return total, nil
}

// Batches 按 size 切分，最后一批可能不满。
func Batches(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end:end])
	}
	return out
}
