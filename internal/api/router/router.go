package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salm/portal/config"
	"salm/portal/internal/api/handler"
	"salm/portal/internal/api/middleware"
	"salm/portal/internal/dto"
	"salm/portal/internal/model"
	"salm/portal/pkg/jwt"
	"salm/portal/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil，此时登录限流关闭
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(middleware.DefaultBodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
	})

	// 认证模块（无需认证）
	r.POST("/auth/login",
		middleware.RateLimit(rdb, cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow, logger),
		h.Auth.Login)

	// 请假模块
	leaves := r.Group("/leaves")
	leaves.Use(middleware.JWTAuth(jwtMgr))
	{
		studentOnly := func(detail string) gin.HandlerFunc {
			return middleware.RoleAuth(detail, model.RoleStudent)
		}
		facultyOnly := func(detail string) gin.HandlerFunc {
			return middleware.RoleAuth(detail, model.RoleFaculty)
		}

		leaves.GET("/summary", studentOnly("Only students can view leave summary"), h.Leave.Summary)
		leaves.POST("/", studentOnly("Only students can apply for leave"), h.Leave.Apply)
		leaves.GET("/me", studentOnly("Only students can view their leaves"), h.Leave.Me)

		leaves.GET("/pending", facultyOnly("Only faculty can view pending leaves"), h.Leave.Pending)
		leaves.PUT("/:id/approve", facultyOnly("Only faculty can approve leaves"), h.Leave.Approve)
		leaves.PUT("/:id/reject", facultyOnly("Only faculty can reject leaves"), h.Leave.Reject)
		leaves.GET("/calendar", facultyOnly("Only faculty can view calendar"), h.Leave.Calendar)
	}

	return r
}
