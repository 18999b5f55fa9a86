package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestJobLocker_AcquireRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()
	l := &JobLocker{rdb: db, owner: "replica-a"}

	mock.ExpectSetNX("flash_promo:lock:beat:sweepExpired", "replica-a", 4*time.Second).SetVal(true)
	mock.ExpectSetNX("flash_promo:lock:beat:sweepExpired", "replica-a", 4*time.Second).SetVal(false)
	mock.ExpectEval(luaReleaseIfOwner, []string{"flash_promo:lock:beat:sweepExpired"}, "replica-a").SetVal(int64(1))

	ok, err := l.Acquire(ctx, "beat:sweepExpired", 4*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected lock, got ok=%v err=%v", ok, err)
	}
	ok, err = l.Acquire(ctx, "beat:sweepExpired", 4*time.Second)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail, got ok=%v err=%v", ok, err)
	}
	released, err := l.Release(ctx, "beat:sweepExpired")
	if err != nil || !released {
		t.Fatalf("expected release, got %v err=%v", released, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStockCache_SetAndGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()
	c := NewStockCache(db, time.Minute)

	mock.ExpectEval(luaSetStockIfNewer, []string{"flash_promo:stock:9"}, int64(4), int64(3), int64(60000)).SetVal(int64(1))
	mock.ExpectHGet("flash_promo:stock:9", "stock").SetVal("4")
	mock.ExpectHGet("flash_promo:stock:10", "stock").RedisNil()

	written, err := c.Set(ctx, 9, 4, 3)
	if err != nil || !written {
		t.Fatalf("expected write, got %v err=%v", written, err)
	}
	n, found, err := c.Get(ctx, 9)
	if err != nil || !found || n != 4 {
		t.Fatalf("expected cached 4, got n=%d found=%v err=%v", n, found, err)
	}
	_, found, err = c.Get(ctx, 10)
	if err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// 两次提交的回调乱序到达：先到的是新版本，后到的旧快照必须被拒绝。
func TestStockCache_OutOfOrderCallbacks(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()
	c := NewStockCache(db, time.Minute)

	// version 7 (stock 4) 先到，写入
	mock.ExpectEval(luaSetStockIfNewer, []string{"flash_promo:stock:9"}, int64(4), int64(7), int64(60000)).SetVal(int64(1))
	// version 6 (stock 5) 后到，脚本看到缓存版本 7 >= 6，放弃
	mock.ExpectEval(luaSetStockIfNewer, []string{"flash_promo:stock:9"}, int64(5), int64(6), int64(60000)).SetVal(int64(0))

	c.StockChanged(ctx, 9, 4, 7)
	written, err := c.Set(ctx, 9, 5, 6)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if written {
		t.Fatalf("expected stale snapshot to be rejected")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestKeys(t *testing.T) {
	if got := StockKey(3); got != "flash_promo:stock:3" {
		t.Fatalf("unexpected stock key %q", got)
	}
	if got := ReserveRateLimitKey(7); got != "flash_promo:rate_limit:reserve:user:7" {
		t.Fatalf("unexpected rate limit key %q", got)
	}
}
