package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flash_promo/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SeedUserID 演示数据里的测试用户。
const SeedUserID int64 = 1

// Seed 写入一套演示数据：一个满足条件的用户、一家门店、一个商品、20 件库存和一个进行中的活动。
// 重复执行不会产生重复数据。
func (s *Store) Seed(ctx context.Context, now time.Time) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		lat, lon := 10.9685, -74.8069
		if err := s.SaveProfile(ctx, &model.Profile{
			UserID:     SeedUserID,
			Lat:        &lat,
			Lon:        &lon,
			IsNewUser:  true,
			IsFrequent: true,
		}); err != nil {
			return err
		}

		var st model.Store
		if err := s.conn(ctx).Where(model.Store{Name: "Tienda Centro"}).
			Attrs(model.Store{Lat: 10.97, Lon: -74.81}).
			FirstOrCreate(&st).Error; err != nil {
			return fmt.Errorf("seed store: %w", err)
		}

		var p model.Product
		if err := s.conn(ctx).Where(model.Product{SKU: "SKU-SEED-001"}).
			Attrs(model.Product{Name: "Agua 600ml", Brand: "AquaBrand", Category: "Bebidas"}).
			FirstOrCreate(&p).Error; err != nil {
			return fmt.Errorf("seed product: %w", err)
		}

		var sp model.StoreProduct
		err := s.conn(ctx).Where("store_id = ? AND product_id = ?", st.ID, p.ID).First(&sp).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sp = model.StoreProduct{StoreID: st.ID, ProductID: p.ID, Stock: 20, BasePrice: decimal.RequireFromString("3.50")}
			err = s.CreateStoreProduct(ctx, &sp)
		}
		if err != nil {
			return fmt.Errorf("seed store product: %w", err)
		}

		var count int64
		if err := s.conn(ctx).Model(&model.FlashPromo{}).Where("store_product_id = ?", sp.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("seed promo: %w", err)
		}
		if count > 0 {
			return nil
		}
		return s.CreatePromo(ctx, &model.FlashPromo{
			StoreProductID: sp.ID,
			PromoPrice:     decimal.RequireFromString("2.50"),
			StartsAt:       now.Add(-5 * time.Minute),
			EndsAt:         now.Add(2 * time.Hour),
			Status:         model.PromoActive,
		})
	})
}
