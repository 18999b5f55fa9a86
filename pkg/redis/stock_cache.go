package redis

import (
	"context"
	"errors"
	"log"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaSetStockIfNewer 写入库存快照；version 来自数据库库存行，
// 缓存里已有相同或更大的版本时放弃，乱序到达的旧快照不会覆盖新值。
const luaSetStockIfNewer = `
local key = KEYS[1]
local stock = ARGV[1]
local version = tonumber(ARGV[2])
local ttlMs = tonumber(ARGV[3])

local cur = redis.call('HGET', key, 'version')
if cur and tonumber(cur) >= version then
  return 0
end
redis.call('HSET', key, 'stock', stock, 'version', version)
redis.call('PEXPIRE', key, ttlMs)
return 1
`

// StockCache 库存行的实时库存快照，只用于展示；数据库始终是权威来源。
type StockCache struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewStockCache(rdb *rd.Client, ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StockCache{rdb: rdb, ttl: ttl}
}

// Set 返回是否写入（不比缓存新的版本会被忽略）。
func (c *StockCache) Set(ctx context.Context, storeProductID uint, stock, version int64) (bool, error) {
	n, err := c.rdb.Eval(ctx, luaSetStockIfNewer, []string{StockKey(storeProductID)},
		stock, version, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get found=false 表示缓存未命中。
func (c *StockCache) Get(ctx context.Context, storeProductID uint) (int64, bool, error) {
	n, err := c.rdb.HGet(ctx, StockKey(storeProductID), "stock").Int64()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

// StockChanged 预占引擎在事务提交后回调；缓存写失败只记录日志。
func (c *StockCache) StockChanged(ctx context.Context, storeProductID uint, stock, version int64) {
	if _, err := c.Set(ctx, storeProductID, stock, version); err != nil {
		log.Printf("stock cache set store_product id=%d: %v", storeProductID, err)
	}
}
