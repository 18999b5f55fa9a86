package router

import (
	"net/http"

	"flash_promo/internal/clock"
	"flash_promo/internal/eligibility"
	"flash_promo/internal/middleware"
	"flash_promo/internal/model"
	"flash_promo/internal/reservation"
	"flash_promo/internal/store"

	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	ReservationToken string `json:"reservation_token" binding:"required,max=64"`
}

func reservationStatus(r model.Reservation) gin.H {
	return gin.H{
		"token":      r.Token,
		"status":     r.Status,
		"expires_at": r.ExpiresAt,
	}
}

// reservePromo 预占入口。
// 关键流程：
// 1. 活动存在且处于 ACTIVE 时间窗内
// 2. 用户有画像，且满足行为 + 距离条件
// 3. 引擎在库存行锁内扣减并创建 60 秒的 HOLD
func reservePromo(s *store.Store, f *eligibility.Filter, eng *reservation.Engine, clk clock.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PromoID uint `json:"promo_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		userID, _ := middleware.UserID(c)
		ctx := c.Request.Context()

		p, err := s.GetPromo(ctx, req.PromoID)
		if err != nil {
			writeError(c, err)
			return
		}
		if !p.IsLive(clk.Now()) {
			writeError(c, model.ErrPromoNotActive)
			return
		}

		profile, err := s.GetProfileByUser(ctx, userID)
		if err != nil {
			writeError(c, err)
			return
		}
		if !f.IsEligible(profile, p) {
			writeError(c, model.ErrIneligibleUser)
			return
		}

		res, err := eng.Hold(ctx, userID, p)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": gin.H{
			"reservation_token": res.Token,
			"expires_at":        res.ExpiresAt,
		}})
	}
}

func checkout(eng *reservation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		userID, _ := middleware.UserID(c)
		res, err := eng.Confirm(c.Request.Context(), req.ReservationToken, userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": reservationStatus(res)})
	}
}

// cancelReservation 取消并归还库存；已是终态时原样返回。
func cancelReservation(eng *reservation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		userID, _ := middleware.UserID(c)
		res, err := eng.Cancel(c.Request.Context(), req.ReservationToken, userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": reservationStatus(res)})
	}
}
