package router

import (
	"errors"
	"log"
	"net/http"

	"flash_promo/internal/model"

	"github.com/gin-gonic/gin"
)

// errorStatus 业务错误 -> HTTP 状态码与对外文案，内部错误细节不外露。
var errorStatus = []struct {
	err    error
	status int
	msg    string
}{
	{model.ErrOutOfStock, http.StatusBadRequest, "out of stock"},
	{model.ErrPromoNotActive, http.StatusBadRequest, "promo not activated"},
	{model.ErrHoldLimitReached, http.StatusBadRequest, "too many active holds for this promo"},
	{model.ErrNotHoldState, http.StatusBadRequest, "reservation not in HOLD state"},
	{model.ErrReservationExpired, http.StatusBadRequest, "reservation expired"},
	{model.ErrInvalidPromoWindow, http.StatusBadRequest, "invalid promo window"},
	{model.ErrInvalidPrice, http.StatusBadRequest, "promo price must be less than base price"},
	{model.ErrIneligibleUser, http.StatusForbidden, "user does not meet both conditions"},
	{model.ErrProfileMissing, http.StatusNotFound, "user has no profile"},
	{model.ErrPromoNotFound, http.StatusNotFound, "promo not found"},
	{model.ErrReservationNotFound, http.StatusNotFound, "reservation not found"},
	{model.ErrStoreProductNotFound, http.StatusNotFound, "store product not found"},
	{model.ErrStoreNotFound, http.StatusNotFound, "store not found"},
	{model.ErrProductNotFound, http.StatusNotFound, "product not found"},
	{model.ErrNotFound, http.StatusNotFound, "not found"},
	{model.ErrConflict, http.StatusConflict, "already exists"},
}

func writeError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"code": e.status, "msg": e.msg})
			return
		}
	}
	log.Printf("http %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": msg})
}
