package store

import (
	"context"
	"fmt"
	"time"

	"flash_promo/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockStoreProduct SELECT ... FOR UPDATE 锁住库存行，必须在事务内调用。
func (s *Store) LockStoreProduct(ctx context.Context, id uint) (model.StoreProduct, error) {
	var sp model.StoreProduct
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&sp, id).Error
	if err != nil {
		return model.StoreProduct{}, notFound(err, model.ErrStoreProductNotFound)
	}
	return sp, nil
}

// DecrementStock stock = stock - 1，带 stock > 0 条件，影响 0 行即视为售罄。
func (s *Store) DecrementStock(ctx context.Context, id uint) error {
	res := s.conn(ctx).
		Model(&model.StoreProduct{}).
		Where("id = ? AND stock > 0", id).
		Updates(map[string]interface{}{
			"stock":         gorm.Expr("stock - 1"),
			"stock_version": gorm.Expr("stock_version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("decrement stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrOutOfStock
	}
	return nil
}

// IncrementStock stock = stock + 1，无需先读。两者都会把 stock_version +1。
func (s *Store) IncrementStock(ctx context.Context, id uint) error {
	res := s.conn(ctx).
		Model(&model.StoreProduct{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":         gorm.Expr("stock + 1"),
			"stock_version": gorm.Expr("stock_version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("increment stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrStoreProductNotFound
	}
	return nil
}

func (s *Store) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if err := s.conn(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// CountLiveHolds 统计某用户在某活动下仍未过期的 HOLD 数。
func (s *Store) CountLiveHolds(ctx context.Context, userID int64, promoID uint, now time.Time) (int64, error) {
	var n int64
	err := s.conn(ctx).
		Model(&model.Reservation{}).
		Where("user_id = ? AND promo_id = ? AND status = ? AND expires_at > ?", userID, promoID, model.ReservationHold, now).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count live holds: %w", err)
	}
	return n, nil
}

// LockReservationByToken 按 (token, user) 锁住预占行。
func (s *Store) LockReservationByToken(ctx context.Context, token string, userID int64) (model.Reservation, error) {
	var r model.Reservation
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ? AND user_id = ?", token, userID).
		First(&r).Error
	if err != nil {
		return model.Reservation{}, notFound(err, model.ErrReservationNotFound)
	}
	return r, nil
}

// LockReservation 按主键锁住预占行，用于释放前在锁内重新确认状态。
func (s *Store) LockReservation(ctx context.Context, id uint) (model.Reservation, error) {
	var r model.Reservation
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&r, id).Error
	if err != nil {
		return model.Reservation{}, notFound(err, model.ErrReservationNotFound)
	}
	return r, nil
}

// FindReservation 按 (token, user) 查询，不加锁。
func (s *Store) FindReservation(ctx context.Context, token string, userID int64) (model.Reservation, error) {
	var r model.Reservation
	err := s.conn(ctx).Where("token = ? AND user_id = ?", token, userID).First(&r).Error
	if err != nil {
		return model.Reservation{}, notFound(err, model.ErrReservationNotFound)
	}
	return r, nil
}

// TransitionReservation HOLD -> to；行已不是 HOLD 时返回 ErrNotHoldState，终态不会被改写。
func (s *Store) TransitionReservation(ctx context.Context, id uint, to model.ReservationStatus) error {
	res := s.conn(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, model.ReservationHold).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("update reservation status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotHoldState
	}
	return nil
}

// ListExpiredHolds status=HOLD 且 expires_at <= now，按过期时间先后返回至多 limit 条。
func (s *Store) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	var list []model.Reservation
	q := s.conn(ctx).
		Where("status = ? AND expires_at <= ?", model.ReservationHold, now).
		Order("expires_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	return list, nil
}
