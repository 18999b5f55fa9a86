package promo

import (
	"context"
	"time"

	"flash_promo/internal/model"

	"github.com/shopspring/decimal"
)

type Repository interface {
	GetStoreProduct(ctx context.Context, id uint) (model.StoreProduct, error)
	CreatePromo(ctx context.Context, p *model.FlashPromo) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateInput struct {
	StoreProductID uint
	PromoPrice     decimal.Decimal
	StartsAt       time.Time
	EndsAt         time.Time
}

// Create 校验后创建 SCHEDULED 活动。
// 校验顺序：门店商品存在 -> 时间窗口（starts < ends 且不少于 1 分钟）-> 活动价低于原价。
func (s *Service) Create(ctx context.Context, in CreateInput) (model.FlashPromo, error) {
	sp, err := s.repo.GetStoreProduct(ctx, in.StoreProductID)
	if err != nil {
		return model.FlashPromo{}, err
	}

	starts, ends := in.StartsAt.UTC(), in.EndsAt.UTC()
	if !starts.Before(ends) || ends.Sub(starts) < model.MinPromoWindow {
		return model.FlashPromo{}, model.ErrInvalidPromoWindow
	}
	if !in.PromoPrice.IsPositive() || !in.PromoPrice.LessThan(sp.BasePrice) {
		return model.FlashPromo{}, model.ErrInvalidPrice
	}

	p := model.FlashPromo{
		StoreProductID: sp.ID,
		PromoPrice:     in.PromoPrice,
		StartsAt:       starts,
		EndsAt:         ends,
		Status:         model.PromoScheduled,
	}
	if err := s.repo.CreatePromo(ctx, &p); err != nil {
		return model.FlashPromo{}, err
	}
	p.StoreProduct = sp
	return p, nil
}
