package repository

import (
	"context"

	"gorm.io/gorm"

	"salm/portal/internal/model"
)

// NotificationRepository 通知投递记录
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByLeave(ctx context.Context, leaveID int64) ([]model.Notification, error)
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) ListByLeave(ctx context.Context, leaveID int64) ([]model.Notification, error) {
	var out []model.Notification
	err := r.db.WithContext(ctx).
		Where("leave_id = ?", leaveID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
