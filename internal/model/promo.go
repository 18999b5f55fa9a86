package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FlashPromoStatus 闪购活动状态，只允许 SCHEDULED -> ACTIVE -> FINISHED 单向流转。
type FlashPromoStatus string

const (
	PromoScheduled FlashPromoStatus = "SCHEDULED"
	PromoActive    FlashPromoStatus = "ACTIVE"
	PromoFinished  FlashPromoStatus = "FINISHED"
)

// MinPromoWindow 活动时间窗最短 1 分钟。
const MinPromoWindow = time.Minute

// FlashPromo 某门店某商品的限时折扣活动。
// 由管理员创建（SCHEDULED），之后只由调度器推进状态。
type FlashPromo struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StoreProductID uint             `gorm:"not null;index:idx_promo_sp_start" json:"store_product_id"`
	PromoPrice     decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"promo_price"`
	StartsAt       time.Time        `gorm:"not null;index:idx_promo_status_window;index:idx_promo_sp_start" json:"starts_at"`
	EndsAt         time.Time        `gorm:"not null;index:idx_promo_status_window;check:starts_at < ends_at" json:"ends_at"`
	Status         FlashPromoStatus `gorm:"size:12;not null;default:SCHEDULED;index:idx_promo_status_window,priority:1" json:"status"`

	StoreProduct StoreProduct `gorm:"foreignKey:StoreProductID" json:"store_product,omitempty"`
}

func (FlashPromo) TableName() string { return "flash_promos" }

// IsLive 活动是否处于 ACTIVE 且 now 落在 [StartsAt, EndsAt] 内。
func (p FlashPromo) IsLive(now time.Time) bool {
	return p.Status == PromoActive && !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}
