package model

import (
	"time"

	"flash_promo/internal/geo"
)

// Profile 用户画像：位置 + 行为标签，与用户一对一。
// Lat/Lon 为空表示没有定位，任何距离判断都视为不满足。
type Profile struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID     int64    `gorm:"not null;uniqueIndex" json:"user_id"`
	Lat        *float64 `gorm:"index:idx_profiles_lat_lon" json:"lat,omitempty"`
	Lon        *float64 `gorm:"index:idx_profiles_lat_lon" json:"lon,omitempty"`
	IsNewUser  bool     `gorm:"not null;default:false" json:"is_new_user"`
	IsFrequent bool     `gorm:"not null;default:false" json:"is_frequent"`
}

func (Profile) TableName() string { return "profiles" }

// Location 返回用户坐标；没有定位时 ok=false。
func (p Profile) Location() (geo.Point, bool) {
	if p.Lat == nil || p.Lon == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *p.Lat, Lon: *p.Lon}, true
}
