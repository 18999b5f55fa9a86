package store

import (
	"context"
	"fmt"

	"flash_promo/internal/model"

	"gorm.io/gorm/clause"
)

func (s *Store) CreateProduct(ctx context.Context, p *model.Product) error {
	if err := s.conn(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return model.ErrConflict
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := s.conn(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return list, nil
}

func (s *Store) CreateStore(ctx context.Context, st *model.Store) error {
	if err := s.conn(ctx).Create(st).Error; err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	return nil
}

func (s *Store) ListStores(ctx context.Context) ([]model.Store, error) {
	var list []model.Store
	if err := s.conn(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return list, nil
}

// CreateStoreProduct 校验门店与商品存在后写入库存行，(store, product) 重复返回 ErrConflict。
func (s *Store) CreateStoreProduct(ctx context.Context, sp *model.StoreProduct) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		var st model.Store
		if err := s.conn(ctx).First(&st, sp.StoreID).Error; err != nil {
			return notFound(err, model.ErrStoreNotFound)
		}
		var p model.Product
		if err := s.conn(ctx).First(&p, sp.ProductID).Error; err != nil {
			return notFound(err, model.ErrProductNotFound)
		}
		if err := s.conn(ctx).Omit(clause.Associations).Create(sp).Error; err != nil {
			if isUniqueViolation(err) {
				return model.ErrConflict
			}
			return fmt.Errorf("create store product: %w", err)
		}
		sp.Store = st
		sp.Product = p
		return nil
	})
}

func (s *Store) ListStoreProducts(ctx context.Context) ([]model.StoreProduct, error) {
	var list []model.StoreProduct
	if err := s.conn(ctx).Preload("Store").Preload("Product").Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list store products: %w", err)
	}
	return list, nil
}

func (s *Store) GetStoreProduct(ctx context.Context, id uint) (model.StoreProduct, error) {
	var sp model.StoreProduct
	if err := s.conn(ctx).Preload("Store").Preload("Product").First(&sp, id).Error; err != nil {
		return model.StoreProduct{}, notFound(err, model.ErrStoreProductNotFound)
	}
	return sp, nil
}

// StockOf 读取当前库存（不加锁，只用于展示）。
func (s *Store) StockOf(ctx context.Context, storeProductID uint) (int64, error) {
	var sp model.StoreProduct
	err := s.conn(ctx).Select("id", "stock").First(&sp, storeProductID).Error
	if err != nil {
		return 0, notFound(err, model.ErrStoreProductNotFound)
	}
	return sp.Stock, nil
}

// StockSnapshot 读取库存及其版本号（不加锁）。
func (s *Store) StockSnapshot(ctx context.Context, storeProductID uint) (stock, version int64, err error) {
	var sp model.StoreProduct
	err = s.conn(ctx).Select("id", "stock", "stock_version").First(&sp, storeProductID).Error
	if err != nil {
		return 0, 0, notFound(err, model.ErrStoreProductNotFound)
	}
	return sp.Stock, sp.StockVersion, nil
}
