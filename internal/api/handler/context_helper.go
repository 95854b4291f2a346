package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"salm/portal/internal/api/middleware"
	"salm/portal/internal/service"
	"salm/portal/pkg/response"
)

// MustGetActor 从 Gin 上下文中取出 JWT 中间件注入的当前用户。
// 取不到时写入 401，调用方应在 ok=false 时直接 return。
func MustGetActor(c *gin.Context) (service.Actor, bool) {
	v, exists := c.Get(middleware.CtxUserID)
	if !exists {
		response.Unauthorized(c, "Could not validate credentials")
		return service.Actor{}, false
	}
	id, ok := v.(int64)
	if !ok || id <= 0 {
		response.Unauthorized(c, "Could not validate credentials")
		return service.Actor{}, false
	}
	return service.Actor{
		UserID:    id,
		Role:      c.GetString(middleware.CtxRole),
		ClassName: c.GetString(middleware.CtxClassName),
	}, true
}

// parseIDParam 解析路径中的 :id
func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ValidationError(c, "Invalid leave id")
		return 0, false
	}
	return id, true
}
