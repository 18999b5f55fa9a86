package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaReleaseIfOwner 仅当锁值等于 owner 时才删除，避免误删别的副本刚抢到的锁。
const luaReleaseIfOwner = `
local lockKey = KEYS[1]
local owner = ARGV[1]
if redis.call('GET', lockKey) == owner then
  return redis.call('DEL', lockKey)
end
return 0
`

// AcquireJobLock SET NX PX，成功返回 true。
func AcquireJobLock(ctx context.Context, rdb *rd.Client, name, owner string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, JobLockKey(name), owner, ttl).Result()
}

// ReleaseJobLock 安全释放，返回是否真正删除。
func ReleaseJobLock(ctx context.Context, rdb *rd.Client, name, owner string) (bool, error) {
	n, err := rdb.Eval(ctx, luaReleaseIfOwner, []string{JobLockKey(name)}, owner).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// JobLocker 以进程唯一 owner 持锁，满足 tasks.Locker。
type JobLocker struct {
	rdb   *rd.Client
	owner string
}

func NewJobLocker(rdb *rd.Client) *JobLocker {
	return &JobLocker{rdb: rdb, owner: uuid.NewString()}
}

func (l *JobLocker) Owner() string { return l.owner }

func (l *JobLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return AcquireJobLock(ctx, l.rdb, name, l.owner, ttl)
}

func (l *JobLocker) Release(ctx context.Context, name string) (bool, error) {
	return ReleaseJobLock(ctx, l.rdb, name, l.owner)
}
