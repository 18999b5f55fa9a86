package model

import "time"

// NotificationLog 推送防重表：同一用户同一活动每天最多一条。
type NotificationLog struct {
	ID     uint      `gorm:"primarykey" json:"id"`
	SentAt time.Time `gorm:"not null;index:idx_notif_promo_sent" json:"sent_at"`

	UserID  int64 `gorm:"not null;uniqueIndex:idx_notif_user_promo_date" json:"user_id"`
	PromoID uint  `gorm:"not null;uniqueIndex:idx_notif_user_promo_date;index:idx_notif_promo_sent" json:"promo_id"`
	// SentDate 形如 2006-01-02，是幂等键的一部分。
	SentDate string `gorm:"size:10;not null;uniqueIndex:idx_notif_user_promo_date" json:"sent_date"`
}

func (NotificationLog) TableName() string { return "notification_logs" }

// DateKey 把时间换算成 NotificationLog 使用的日期键（UTC）。
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
