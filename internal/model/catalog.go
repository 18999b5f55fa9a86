package model

import (
	"time"

	"flash_promo/internal/geo"

	"github.com/shopspring/decimal"
)

// Store 门店：名称 + 坐标。
type Store struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string  `gorm:"size:120;not null" json:"name"`
	Lat  float64 `gorm:"not null;index:idx_stores_lat_lon" json:"lat"`
	Lon  float64 `gorm:"not null;index:idx_stores_lat_lon" json:"lon"`
}

func (Store) TableName() string { return "stores" }

// Point 返回门店坐标。
func (s Store) Point() geo.Point { return geo.Point{Lat: s.Lat, Lon: s.Lon} }

// Product 商品，SKU 全局唯一。
type Product struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string `gorm:"size:120;not null" json:"name"`
	SKU      string `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Brand    string `gorm:"size:64" json:"brand"`
	Category string `gorm:"size:64" json:"category"`
}

func (Product) TableName() string { return "products" }

// StoreProduct 门店库存行（store, product 唯一）。
// 秒杀期间所有库存变更都必须在持有该行排他锁的事务内进行。
type StoreProduct struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StoreID   uint            `gorm:"not null;uniqueIndex:idx_store_product" json:"store_id"`
	ProductID uint            `gorm:"not null;uniqueIndex:idx_store_product" json:"product_id"`
	Stock     int64           `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	BasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
	// StockVersion 每次库存变更 +1，与库存在同一事务内更新，用于缓存判断新旧。
	StockVersion int64 `gorm:"not null;default:0" json:"-"`

	Store   Store   `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (StoreProduct) TableName() string { return "store_products" }
