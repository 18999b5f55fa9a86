package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderAdminToken = "X-Admin-Token"

	ctxUserID = "auth.user_id"
	ctxStaff  = "auth.staff"
)

// Authenticate demo 级别鉴权：X-User-ID 标识用户，X-Admin-Token 匹配时视为运营人员。
// 只解析、不拦截；拦截由 RequireUser / RequireStaff 负责。
func Authenticate(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := strings.TrimSpace(c.GetHeader(HeaderUserID)); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				c.Set(ctxUserID, id)
			}
		}
		token := c.GetHeader(HeaderAdminToken)
		if adminToken != "" && token != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) == 1 {
			c.Set(ctxStaff, true)
		}
		c.Next()
	}
}

// UserID 当前请求的用户，未登录返回 false。
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func IsStaff(c *gin.Context) bool {
	return c.GetBool(ctxStaff)
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "authentication required"})
			return
		}
		c.Next()
	}
}

func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsStaff(c) {
			c.Next()
			return
		}
		if _, ok := UserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "authentication required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": 403, "msg": "staff only"})
	}
}
