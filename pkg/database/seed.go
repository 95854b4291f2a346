package database

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"salm/portal/internal/model"
)

// DemoPassword 演示账号的初始密码
const DemoPassword = "password123"

// DemoUsers 演示账号：同班的一名学生与一名教师
func DemoUsers() []model.User {
	class := "CS-A"
	return []model.User{
		{Name: "Prem Student", Email: "student@college.com", Role: model.RoleStudent, ClassName: &class, CasualBalance: 10, TotalWorkingDays: 100},
		{Name: "Dr. Faculty", Email: "faculty@college.com", Role: model.RoleFaculty, ClassName: &class, CasualBalance: 10, TotalWorkingDays: 100},
	}
}

// Seed 写入演示账号；已存在时重置密码与角色
func Seed(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("生成密码哈希失败: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range DemoUsers() {
			u.PasswordHash = string(hash)

			var existing model.User
			err := tx.Where("email = ?", u.Email).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&u).Error; err != nil {
					return fmt.Errorf("创建演示账号 %s 失败: %w", u.Email, err)
				}
				logger.Info("已创建演示账号", zap.String("email", u.Email), zap.String("role", u.Role))
			case err != nil:
				return err
			default:
				existing.PasswordHash = u.PasswordHash
				existing.Role = u.Role
				existing.ClassName = u.ClassName
				if err := tx.Save(&existing).Error; err != nil {
					return fmt.Errorf("更新演示账号 %s 失败: %w", u.Email, err)
				}
				logger.Info("演示账号已存在，已重置密码", zap.String("email", u.Email))
			}
		}
		return nil
	})
}
