package eligibility

import (
	"context"
	"sort"
	"time"

	"flash_promo/internal/clock"
	"flash_promo/internal/geo"
	"flash_promo/internal/model"
)

// DefaultRadiusMeters 默认参与半径 2km。
const DefaultRadiusMeters = 2000

// PromoSource 提供当前进行中的活动（已带出门店）。
type PromoSource interface {
	ListLivePromos(ctx context.Context, now time.Time) ([]model.FlashPromo, error)
}

// Filter 参与资格判断：行为标签 + 距离。
type Filter struct {
	promos PromoSource
	clock  clock.Clock
	radius float64
}

func NewFilter(promos PromoSource, clk clock.Clock, radiusMeters float64) *Filter {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Filter{promos: promos, clock: clk, radius: radiusMeters}
}

// Radius 参与半径（米）。
func (f *Filter) Radius() float64 { return f.radius }

// BehaviorOK 新用户或常客。
func BehaviorOK(p model.Profile) bool {
	return p.IsNewUser || p.IsFrequent
}

// IsEligible 画像满足行为条件，且与活动门店的距离 <= 半径。
// promo 必须已带出 StoreProduct.Store；缺少任一侧坐标都视为不满足。
func (f *Filter) IsEligible(p model.Profile, promo model.FlashPromo) bool {
	if !BehaviorOK(p) {
		return false
	}
	loc, ok := p.Location()
	if !ok {
		return false
	}
	store := promo.StoreProduct.Store
	if store.ID == 0 {
		return false
	}
	return geo.Within(loc, store.Point(), f.radius)
}

// PromoDistance 活动及其门店到用户的距离。
type PromoDistance struct {
	Promo          model.FlashPromo
	DistanceMeters float64
}

// ActivePromosNear 返回半径内进行中的活动，按距离升序。
// 行为条件不满足时直接返回空，不做任何距离计算。
func (f *Filter) ActivePromosNear(ctx context.Context, p model.Profile) ([]PromoDistance, error) {
	if !BehaviorOK(p) {
		return nil, nil
	}
	loc, ok := p.Location()
	if !ok {
		return nil, nil
	}

	promos, err := f.promos.ListLivePromos(ctx, f.clock.Now())
	if err != nil {
		return nil, err
	}

	out := make([]PromoDistance, 0, len(promos))
	for _, promo := range promos {
		store := promo.StoreProduct.Store
		if store.ID == 0 {
			continue
		}
		d := geo.Distance(loc, store.Point())
		if d > f.radius {
			continue
		}
		out = append(out, PromoDistance{Promo: promo, DistanceMeters: d})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].Promo.ID < out[j].Promo.ID
	})
	return out, nil
}
