package reservation

import (
	"context"
	"log"
	"strings"
	"time"

	"flash_promo/internal/clock"
	"flash_promo/internal/model"

	"github.com/google/uuid"
)

// DefaultHoldTTL 预占租期固定 60 秒，不支持续期。
const DefaultHoldTTL = 60 * time.Second

const defaultSweepLimit = 500

// Repository 引擎依赖的存储能力；所有带 Lock 的方法都要求在 WithTx 内调用。
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockStoreProduct(ctx context.Context, id uint) (model.StoreProduct, error)
	GetPromo(ctx context.Context, id uint) (model.FlashPromo, error)
	CountLiveHolds(ctx context.Context, userID int64, promoID uint, now time.Time) (int64, error)
	DecrementStock(ctx context.Context, id uint) error
	IncrementStock(ctx context.Context, id uint) error
	CreateReservation(ctx context.Context, r *model.Reservation) error
	LockReservationByToken(ctx context.Context, token string, userID int64) (model.Reservation, error)
	LockReservation(ctx context.Context, id uint) (model.Reservation, error)
	FindReservation(ctx context.Context, token string, userID int64) (model.Reservation, error)
	TransitionReservation(ctx context.Context, id uint, to model.ReservationStatus) error
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
}

// StockObserver 在库存变更提交后收到通知（例如刷新缓存），失败不影响主流程。
// version 是库存行在同一事务内递增后的版本号，回调乱序到达时据此丢弃旧值。
type StockObserver interface {
	StockChanged(ctx context.Context, storeProductID uint, stock, version int64)
}

// stockChange 一次已提交的库存变更。
type stockChange struct {
	stock   int64
	version int64
}

// Engine 预占状态机：HOLD -> CONFIRMED / EXPIRED。
//
// 锁顺序：hold 只锁库存行；confirm 与释放都先锁预占行、再锁库存行。
// 两条路径不会形成环，因此 confirm 与 sweeper 并发时不会死锁。
type Engine struct {
	repo     Repository
	clock    clock.Clock
	holdTTL  time.Duration
	maxHolds int64
	limit    int
	observer StockObserver
}

type Option func(*Engine)

// WithHoldTTL 覆盖默认租期。
func WithHoldTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.holdTTL = d
		}
	}
}

// WithMaxHoldsPerUser 每个用户在同一活动下最多同时持有 n 个 HOLD，n <= 0 表示不限。
func WithMaxHoldsPerUser(n int) Option {
	return func(e *Engine) { e.maxHolds = int64(n) }
}

// WithStockObserver 注册库存变更观察者。
func WithStockObserver(o StockObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// WithSweepLimit 单次 sweep 最多处理多少条。
func WithSweepLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

func NewEngine(repo Repository, clk clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		repo:    repo,
		clock:   clk,
		holdTTL: DefaultHoldTTL,
		limit:   defaultSweepLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HoldTTL 当前租期。
func (e *Engine) HoldTTL() time.Duration { return e.holdTTL }

// Hold 为 user 在 promo 上占一件库存。
// 资格与活动状态由调用方先校验；这里在库存行锁内重新读取库存和活动窗口，
// 扣减与写预占在同一事务提交。
func (e *Engine) Hold(ctx context.Context, userID int64, promo model.FlashPromo) (model.Reservation, error) {
	now := e.clock.Now()
	var (
		res    model.Reservation
		change stockChange
	)

	err := e.repo.WithTx(ctx, func(ctx context.Context) error {
		sp, err := e.repo.LockStoreProduct(ctx, promo.StoreProductID)
		if err != nil {
			return err
		}

		current, err := e.repo.GetPromo(ctx, promo.ID)
		if err != nil {
			return err
		}
		if !current.IsLive(now) {
			return model.ErrPromoNotActive
		}

		if sp.Stock <= 0 {
			return model.ErrOutOfStock
		}

		if e.maxHolds > 0 {
			n, err := e.repo.CountLiveHolds(ctx, userID, promo.ID, now)
			if err != nil {
				return err
			}
			if n >= e.maxHolds {
				return model.ErrHoldLimitReached
			}
		}

		if err := e.repo.DecrementStock(ctx, sp.ID); err != nil {
			return err
		}

		res = model.Reservation{
			PromoID:        promo.ID,
			StoreProductID: sp.ID,
			UserID:         userID,
			Status:         model.ReservationHold,
			Token:          newToken(),
			ExpiresAt:      now.Add(e.holdTTL),
			CreatedAt:      now,
		}
		if err := e.repo.CreateReservation(ctx, &res); err != nil {
			return err
		}
		change = stockChange{stock: sp.Stock - 1, version: sp.StockVersion + 1}
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}

	e.notifyStock(ctx, res.StoreProductID, change)
	return res, nil
}

// Confirm 确认预占。
// 先锁预占行再判断状态与期限：非 HOLD 返回 ErrNotHoldState；
// 已过期则在同一事务内释放库存并置为 EXPIRED，提交后返回 ErrReservationExpired。
func (e *Engine) Confirm(ctx context.Context, token string, userID int64) (model.Reservation, error) {
	now := e.clock.Now()
	var (
		res     model.Reservation
		notHold bool
		expired bool
		change  stockChange
	)

	err := e.repo.WithTx(ctx, func(ctx context.Context) error {
		r, err := e.repo.LockReservationByToken(ctx, token, userID)
		if err != nil {
			return err
		}
		res = r

		if r.Status != model.ReservationHold {
			notHold = true
			return nil
		}

		if !r.ExpiresAt.After(now) {
			change, err = e.release(ctx, r)
			if err != nil {
				return err
			}
			res.Status = model.ReservationExpired
			expired = true
			return nil
		}

		if err := e.repo.TransitionReservation(ctx, r.ID, model.ReservationConfirmed); err != nil {
			return err
		}
		res.Status = model.ReservationConfirmed
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}

	if notHold {
		return res, model.ErrNotHoldState
	}
	if expired {
		e.notifyStock(ctx, res.StoreProductID, change)
		return res, model.ErrReservationExpired
	}
	return res, nil
}

// Cancel 用户主动取消：按 (token, user) 查到预占后走统一释放路径。
func (e *Engine) Cancel(ctx context.Context, token string, userID int64) (model.Reservation, error) {
	r, err := e.repo.FindReservation(ctx, token, userID)
	if err != nil {
		return model.Reservation{}, err
	}
	return e.CancelOrExpire(ctx, r)
}

// CancelOrExpire 释放一个 HOLD：库存 +1，状态置为 EXPIRED。
// 已是终态时原样返回，不做任何修改（幂等）。
func (e *Engine) CancelOrExpire(ctx context.Context, r model.Reservation) (model.Reservation, error) {
	out, _, err := e.releaseOne(ctx, r)
	return out, err
}

// SweepExpired 释放所有已过期的 HOLD，返回本次实际释放的数量。
// 单条失败只记录日志，不影响其余记录。
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	now := e.clock.Now()
	expired, err := e.repo.ListExpiredHolds(ctx, now, e.limit)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, r := range expired {
		if ctx.Err() != nil {
			return released, ctx.Err()
		}
		_, ok, err := e.releaseOne(ctx, r)
		if err != nil {
			log.Printf("sweeper release reservation id=%d: %v", r.ID, err)
			continue
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		log.Printf("sweeper released %d expired holds", released)
	}
	return released, nil
}

func (e *Engine) releaseOne(ctx context.Context, r model.Reservation) (model.Reservation, bool, error) {
	if r.Status.Terminal() {
		return r, false, nil
	}

	var (
		out      model.Reservation
		released bool
		change   stockChange
	)
	err := e.repo.WithTx(ctx, func(ctx context.Context) error {
		cur, err := e.repo.LockReservation(ctx, r.ID)
		if err != nil {
			return err
		}
		out = cur
		// 锁内重新确认：并发的 confirm / sweep 可能已经把它推到终态。
		if cur.Status != model.ReservationHold {
			return nil
		}
		change, err = e.release(ctx, cur)
		if err != nil {
			return err
		}
		out.Status = model.ReservationExpired
		released = true
		return nil
	})
	if err != nil {
		return model.Reservation{}, false, err
	}

	if released {
		e.notifyStock(ctx, out.StoreProductID, change)
	}
	return out, released, nil
}

// release 调用方已持有预占行锁且确认为 HOLD；这里再锁库存行，+1 并置 EXPIRED。
func (e *Engine) release(ctx context.Context, r model.Reservation) (stockChange, error) {
	sp, err := e.repo.LockStoreProduct(ctx, r.StoreProductID)
	if err != nil {
		return stockChange{}, err
	}
	if err := e.repo.IncrementStock(ctx, sp.ID); err != nil {
		return stockChange{}, err
	}
	// 条件更新失败（含 ErrNotHoldState）会回滚整笔事务，库存不会被多加。
	if err := e.repo.TransitionReservation(ctx, r.ID, model.ReservationExpired); err != nil {
		return stockChange{}, err
	}
	return stockChange{stock: sp.Stock + 1, version: sp.StockVersion + 1}, nil
}

func (e *Engine) notifyStock(ctx context.Context, storeProductID uint, c stockChange) {
	if e.observer == nil {
		return
	}
	e.observer.StockChanged(ctx, storeProductID, c.stock, c.version)
}

// newToken 32 位十六进制随机串。
func newToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
