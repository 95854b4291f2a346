package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody 错误响应结构：{"detail": "..."}
// 客户端直接把响应正文当作错误文本展示
type ErrorBody struct {
	Detail string `json:"detail"`
}

// ── 成功响应 ──

// OK 200，响应体即数据本身（无外层包装）
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, detail string) {
	c.JSON(httpStatus, ErrorBody{Detail: detail})
}

// BadRequest 400
func BadRequest(c *gin.Context, detail string) {
	Error(c, http.StatusBadRequest, detail)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, detail string) {
	Error(c, http.StatusUnauthorized, detail)
}

// Forbidden 403
func Forbidden(c *gin.Context, detail string) {
	Error(c, http.StatusForbidden, detail)
}

// NotFound 404
func NotFound(c *gin.Context, detail string) {
	Error(c, http.StatusNotFound, detail)
}

// Conflict 409
func Conflict(c *gin.Context, detail string) {
	Error(c, http.StatusConflict, detail)
}

// TooManyRequests 429
func TooManyRequests(c *gin.Context, detail string) {
	Error(c, http.StatusTooManyRequests, detail)
}

// ValidationError 422（请求体无法解析或缺少字段）
func ValidationError(c *gin.Context, detail string) {
	Error(c, http.StatusUnprocessableEntity, detail)
}

// InternalError 500
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal Server Error")
}
