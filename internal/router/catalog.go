package router

import (
	"net/http"
	"strconv"

	"flash_promo/internal/geo"
	"flash_promo/internal/model"
	"flash_promo/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func listProducts(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.ListProducts(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func createProduct(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required,max=120"`
			SKU      string `json:"sku" binding:"required,max=64"`
			Brand    string `json:"brand" binding:"max=64"`
			Category string `json:"category" binding:"max=64"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		p := model.Product{Name: req.Name, SKU: req.SKU, Brand: req.Brand, Category: req.Category}
		if err := s.CreateProduct(c.Request.Context(), &p); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": p})
	}
}

func listStores(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.ListStores(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func createStore(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string   `json:"name" binding:"required,max=120"`
			Lat  *float64 `json:"lat" binding:"required"`
			Lon  *float64 `json:"lon" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		if !(geo.Point{Lat: *req.Lat, Lon: *req.Lon}).Valid() {
			badRequest(c, "invalid coordinates")
			return
		}
		st := model.Store{Name: req.Name, Lat: *req.Lat, Lon: *req.Lon}
		if err := s.CreateStore(c.Request.Context(), &st); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": st})
	}
}

func listStoreProducts(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.ListStoreProducts(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func createStoreProduct(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			StoreID   uint            `json:"store_id" binding:"required,min=1"`
			ProductID uint            `json:"product_id" binding:"required,min=1"`
			Stock     int64           `json:"stock" binding:"min=0"`
			BasePrice decimal.Decimal `json:"base_price"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		if !req.BasePrice.IsPositive() {
			badRequest(c, "base_price must be > 0")
			return
		}
		sp := model.StoreProduct{
			StoreID:   req.StoreID,
			ProductID: req.ProductID,
			Stock:     req.Stock,
			BasePrice: req.BasePrice,
		}
		if err := s.CreateStoreProduct(c.Request.Context(), &sp); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": sp})
	}
}

// saveProfile 运营维护用户画像（坐标 + 行为标签）。
func saveProfile(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			badRequest(c, "invalid user_id")
			return
		}
		var req struct {
			Lat        *float64 `json:"lat"`
			Lon        *float64 `json:"lon"`
			IsNewUser  bool     `json:"is_new_user"`
			IsFrequent bool     `json:"is_frequent"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		if (req.Lat == nil) != (req.Lon == nil) {
			badRequest(c, "lat and lon must be set together")
			return
		}
		if req.Lat != nil && !(geo.Point{Lat: *req.Lat, Lon: *req.Lon}).Valid() {
			badRequest(c, "invalid coordinates")
			return
		}
		p := model.Profile{
			UserID:     userID,
			Lat:        req.Lat,
			Lon:        req.Lon,
			IsNewUser:  req.IsNewUser,
			IsFrequent: req.IsFrequent,
		}
		if err := s.SaveProfile(c.Request.Context(), &p); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}
