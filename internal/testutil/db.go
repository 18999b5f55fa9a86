package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"flash_promo/internal/model"
	"flash_promo/internal/store"

	"github.com/shopspring/decimal"
)

// StoreLat/StoreLon 测试门店坐标，Near 在 2km 内，Far 在 2km 外。
const (
	StoreLat = 10.97
	StoreLon = -74.81
	NearLat  = 10.9685
	NearLon  = -74.8069
	FarLat   = 11.20
	FarLon   = -74.81
)

var skuSeq atomic.Int64

// NewStore 在临时目录建一个 sqlite 库并完成迁移。
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "flash_promo_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.New(db)
}

// InsertStoreProduct 建门店 + 商品 + 库存行。
func InsertStoreProduct(t *testing.T, ctx context.Context, s *store.Store, stock int64, basePrice string) model.StoreProduct {
	t.Helper()
	st := model.Store{Name: "Tienda Centro", Lat: StoreLat, Lon: StoreLon}
	if err := s.CreateStore(ctx, &st); err != nil {
		t.Fatalf("insert store: %v", err)
	}
	p := model.Product{
		Name:     "Agua 600ml",
		SKU:      fmt.Sprintf("SKU-TEST-%d", skuSeq.Add(1)),
		Brand:    "AquaBrand",
		Category: "Bebidas",
	}
	if err := s.CreateProduct(ctx, &p); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	sp := model.StoreProduct{
		StoreID:   st.ID,
		ProductID: p.ID,
		Stock:     stock,
		BasePrice: decimal.RequireFromString(basePrice),
	}
	if err := s.CreateStoreProduct(ctx, &sp); err != nil {
		t.Fatalf("insert store product: %v", err)
	}
	return sp
}

// InsertPromo 直接写入指定状态的活动（绕过创建校验）。
func InsertPromo(t *testing.T, ctx context.Context, s *store.Store, storeProductID uint, status model.FlashPromoStatus, startsAt, endsAt time.Time) model.FlashPromo {
	t.Helper()
	p := model.FlashPromo{
		StoreProductID: storeProductID,
		PromoPrice:     decimal.RequireFromString("2.50"),
		StartsAt:       startsAt.UTC(),
		EndsAt:         endsAt.UTC(),
		Status:         status,
	}
	if err := s.CreatePromo(ctx, &p); err != nil {
		t.Fatalf("insert promo: %v", err)
	}
	loaded, err := s.GetPromo(ctx, p.ID)
	if err != nil {
		t.Fatalf("reload promo: %v", err)
	}
	return loaded
}

// InsertProfile 写入画像。
func InsertProfile(t *testing.T, ctx context.Context, s *store.Store, userID int64, lat, lon float64, isNew, isFrequent bool) model.Profile {
	t.Helper()
	p := model.Profile{UserID: userID, Lat: &lat, Lon: &lon, IsNewUser: isNew, IsFrequent: isFrequent}
	if err := s.SaveProfile(ctx, &p); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	return p
}

// Stock 读取库存行当前库存。
func Stock(t *testing.T, ctx context.Context, s *store.Store, storeProductID uint) int64 {
	t.Helper()
	n, err := s.StockOf(ctx, storeProductID)
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return n
}
