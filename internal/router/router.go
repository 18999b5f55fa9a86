package router

import (
	"net/http"
	"time"

	"flash_promo/internal/clock"
	"flash_promo/internal/eligibility"
	"flash_promo/internal/middleware"
	"flash_promo/internal/promo"
	"flash_promo/internal/reservation"
	"flash_promo/internal/store"
	redisx "flash_promo/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// Deps HTTP 层依赖。RDB / StockCache 为空时关闭限流与库存缓存。
type Deps struct {
	Store      *store.Store
	Engine     *reservation.Engine
	Filter     *eligibility.Filter
	Promos     *promo.Service
	Clock      clock.Clock
	RDB        *rd.Client
	StockCache *redisx.StockCache

	AdminToken    string
	ReserveLimit  int
	ReserveWindow time.Duration
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	api := r.Group("/", middleware.Authenticate(d.AdminToken))
	user := api.Group("/", middleware.RequireUser())
	staff := api.Group("/", middleware.RequireStaff())

	// Catalog：登录可读，运营可写
	user.GET("/products", listProducts(d.Store))
	staff.POST("/products", createProduct(d.Store))
	user.GET("/stores", listStores(d.Store))
	staff.POST("/stores", createStore(d.Store))
	user.GET("/store-products", listStoreProducts(d.Store))
	staff.POST("/store-products", createStoreProduct(d.Store))
	staff.PUT("/profiles/:user_id", saveProfile(d.Store))

	// Promos
	staff.POST("/promos", createPromo(d.Promos))
	user.GET("/promos/active", activePromos(d.Store, d.Filter))
	user.GET("/promos/:id/stock", promoStock(d.Store, d.StockCache))

	// Cart
	reserve := []gin.HandlerFunc{}
	if d.RDB != nil && d.ReserveLimit > 0 {
		reserve = append(reserve, middleware.RedisRateLimit(d.RDB, d.ReserveLimit, d.ReserveWindow))
	}
	reserve = append(reserve, reservePromo(d.Store, d.Filter, d.Engine, d.Clock))
	user.POST("/cart/reserve", reserve...)
	user.PUT("/cart/checkout", checkout(d.Engine))
	user.PUT("/cart/cancel", cancelReservation(d.Engine))
}
