package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"salm/portal/pkg/jwt"
	"salm/portal/pkg/response"
)

// 上下文键
const (
	CtxUserID    = "user_id"
	CtxRole      = "role"
	CtxClassName = "class_name"
)

const credentialsDetail = "Could not validate credentials"

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Unauthorized(c, credentialsDetail)
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Unauthorized(c, credentialsDetail)
			c.Abort()
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			response.Unauthorized(c, credentialsDetail)
			c.Abort()
			return
		}

		c.Set(CtxUserID, userID)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxClassName, claims.ClassName)

		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 当前用户不属于 allowedRoles 时返回 403，detail 为对外提示文案
func RoleAuth(detail string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		if role == "" {
			response.Unauthorized(c, credentialsDetail)
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if role == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, detail)
		c.Abort()
	}
}
