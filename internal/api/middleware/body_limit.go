package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"salm/portal/pkg/response"
)

// DefaultBodyLimit 请求体上限，请假接口只收小 JSON
const DefaultBodyLimit int64 = 64 << 10

// BodyLimit 请求体大小限制中间件
// Content-Length 已知超限时直接 413；其余情况由 MaxBytesReader 在读取时截断
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, "Request body too large")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
