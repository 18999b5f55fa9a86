package router

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"flash_promo/internal/eligibility"
	"flash_promo/internal/middleware"
	"flash_promo/internal/promo"
	"flash_promo/internal/store"
	redisx "flash_promo/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// createPromo 创建 SCHEDULED 活动，之后由调度器激活。
func createPromo(svc *promo.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			StoreProductID uint            `json:"store_product_id" binding:"required,min=1"`
			PromoPrice     decimal.Decimal `json:"promo_price"`
			StartsAt       time.Time       `json:"starts_at" binding:"required"`
			EndsAt         time.Time       `json:"ends_at" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body, times must be RFC3339")
			return
		}
		p, err := svc.Create(c.Request.Context(), promo.CreateInput{
			StoreProductID: req.StoreProductID,
			PromoPrice:     req.PromoPrice,
			StartsAt:       req.StartsAt,
			EndsAt:         req.EndsAt,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": gin.H{
			"id":               p.ID,
			"store_product_id": p.StoreProductID,
			"promo_price":      p.PromoPrice,
			"starts_at":        p.StartsAt,
			"ends_at":          p.EndsAt,
			"status":           p.Status,
		}})
	}
}

type activePromoItem struct {
	ID          uint            `json:"id"`
	ProductName string          `json:"product_name"`
	StoreName   string          `json:"store_name"`
	PromoPrice  decimal.Decimal `json:"promo_price"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      time.Time       `json:"ends_at"`
	DistanceM   float64         `json:"distance_m"`
}

// activePromos 当前用户半径内进行中的活动，按距离升序。
func activePromos(s *store.Store, f *eligibility.Filter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		profile, err := s.GetProfileByUser(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		near, err := f.ActivePromosNear(c.Request.Context(), profile)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]activePromoItem, 0, len(near))
		for _, pd := range near {
			p := pd.Promo
			out = append(out, activePromoItem{
				ID:          p.ID,
				ProductName: p.StoreProduct.Product.Name,
				StoreName:   p.StoreProduct.Store.Name,
				PromoPrice:  p.PromoPrice,
				StartsAt:    p.StartsAt,
				EndsAt:      p.EndsAt,
				DistanceM:   pd.DistanceMeters,
			})
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": out})
	}
}

// promoStock 活动商品的实时库存：优先读缓存，未命中回源数据库并回填。
func promoStock(s *store.Store, cache *redisx.StockCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			badRequest(c, "invalid promo id")
			return
		}
		ctx := c.Request.Context()
		p, err := s.GetPromo(ctx, uint(id))
		if err != nil {
			writeError(c, err)
			return
		}

		if cache != nil {
			stock, found, err := cache.Get(ctx, p.StoreProductID)
			if err != nil {
				log.Printf("stock cache get store_product id=%d: %v", p.StoreProductID, err)
			}
			if found {
				c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"promo_id": p.ID, "stock": stock}})
				return
			}
		}

		stock, version, err := s.StockSnapshot(ctx, p.StoreProductID)
		if err != nil {
			writeError(c, err)
			return
		}
		if cache != nil {
			cache.StockChanged(ctx, p.StoreProductID, stock, version)
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"promo_id": p.ID, "stock": stock}})
	}
}
