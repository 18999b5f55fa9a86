package model

import "time"

// ReservationStatus 描述预占状态机：HOLD 是唯一的初始态，其余都是终态。
type ReservationStatus string

const (
	ReservationHold      ReservationStatus = "HOLD"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCanceled  ReservationStatus = "CANCELED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// Terminal 终态之后不允许再有任何变更。
func (s ReservationStatus) Terminal() bool {
	return s == ReservationConfirmed || s == ReservationCanceled || s == ReservationExpired
}

// Reservation 对一件库存的短时占位，Token 作为对外凭证。
type Reservation struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PromoID        uint              `gorm:"not null;index" json:"promo_id"`
	StoreProductID uint              `gorm:"not null;index:idx_reservation_sp_status" json:"store_product_id"`
	UserID         int64             `gorm:"not null;index" json:"user_id"`
	Status         ReservationStatus `gorm:"size:12;not null;default:HOLD;index:idx_reservation_sp_status;index:idx_reservation_status_expiry" json:"status"`
	Token          string            `gorm:"size:64;uniqueIndex;not null" json:"token"`
	ExpiresAt      time.Time         `gorm:"not null;index:idx_reservation_status_expiry" json:"expires_at"`
}

func (Reservation) TableName() string { return "reservations" }
