package service

import (
	"go.uber.org/zap"

	"salm/portal/config"
	"salm/portal/internal/repository"
	"salm/portal/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	Leave        LeaveService
	Notification NotificationService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	notify := NewNotificationService(&cfg.Notify, repo, notifier, logger)
	return &Service{
		Auth:         NewAuthService(cfg, repo, jwtMgr, logger),
		Leave:        NewLeaveService(&cfg.Policy, repo, notify, logger),
		Notification: notify,
	}
}
