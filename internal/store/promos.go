package store

import (
	"context"
	"fmt"
	"time"

	"flash_promo/internal/model"

	"gorm.io/gorm/clause"
)

func (s *Store) CreatePromo(ctx context.Context, p *model.FlashPromo) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		return fmt.Errorf("create promo: %w", err)
	}
	return nil
}

// GetPromo 读取活动并带出门店与商品。
func (s *Store) GetPromo(ctx context.Context, id uint) (model.FlashPromo, error) {
	var p model.FlashPromo
	err := s.conn(ctx).
		Preload("StoreProduct.Store").
		Preload("StoreProduct.Product").
		First(&p, id).Error
	if err != nil {
		return model.FlashPromo{}, notFound(err, model.ErrPromoNotFound)
	}
	return p, nil
}

// ListPromosToActivate status=SCHEDULED 且 starts_at <= now < ends_at。
func (s *Store) ListPromosToActivate(ctx context.Context, now time.Time) ([]model.FlashPromo, error) {
	var list []model.FlashPromo
	err := s.conn(ctx).
		Where("status = ? AND starts_at <= ? AND ends_at > ?", model.PromoScheduled, now, now).
		Order("id").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list promos to activate: %w", err)
	}
	return list, nil
}

// ActivatePromo 条件更新 SCHEDULED -> ACTIVE，返回是否真的发生了迁移。
// 并发调度器重复执行时只有一个能拿到 true。
func (s *Store) ActivatePromo(ctx context.Context, id uint) (bool, error) {
	res := s.conn(ctx).
		Model(&model.FlashPromo{}).
		Where("id = ? AND status = ?", id, model.PromoScheduled).
		Update("status", model.PromoActive)
	if res.Error != nil {
		return false, fmt.Errorf("activate promo %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FinishPromos 批量把已过期的 ACTIVE 活动置为 FINISHED。
func (s *Store) FinishPromos(ctx context.Context, now time.Time) (int64, error) {
	res := s.conn(ctx).
		Model(&model.FlashPromo{}).
		Where("status = ? AND ends_at < ?", model.PromoActive, now).
		Update("status", model.PromoFinished)
	if res.Error != nil {
		return 0, fmt.Errorf("finish promos: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListLivePromos status=ACTIVE 且 starts_at <= now <= ends_at，带出门店与商品。
func (s *Store) ListLivePromos(ctx context.Context, now time.Time) ([]model.FlashPromo, error) {
	var list []model.FlashPromo
	err := s.conn(ctx).
		Preload("StoreProduct.Store").
		Preload("StoreProduct.Product").
		Where("status = ? AND starts_at <= ? AND ends_at >= ?", model.PromoActive, now, now).
		Order("id").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list live promos: %w", err)
	}
	return list, nil
}
