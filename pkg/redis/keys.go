package redis

import "fmt"

// StockKey 门店库存行的实时库存缓存。
func StockKey(storeProductID uint) string {
	return fmt.Sprintf("flash_promo:stock:%d", storeProductID)
}

// JobLockKey 周期任务 / 一次性任务的互斥锁。
func JobLockKey(name string) string {
	return fmt.Sprintf("flash_promo:lock:%s", name)
}

// ReserveRateLimitKey 预占接口按用户限流。
func ReserveRateLimitKey(userID int64) string {
	return fmt.Sprintf("flash_promo:rate_limit:reserve:user:%d", userID)
}

// ReserveRateLimitIPKey 拿不到用户时按 IP 降级限流。
func ReserveRateLimitIPKey(ip string) string {
	return fmt.Sprintf("flash_promo:rate_limit:reserve:ip:%s", ip)
}
