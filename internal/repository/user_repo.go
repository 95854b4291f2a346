package repository

import (
	"context"

	"gorm.io/gorm"

	"salm/portal/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByEmailAndRole(ctx context.Context, email, role string) (*model.User, error)
	ListByClassAndRole(ctx context.Context, className, role string) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmailAndRole 登录按邮箱 + 角色匹配
func (r *userRepo) GetByEmailAndRole(ctx context.Context, email, role string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND role = ?", email, role).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByClassAndRole 查询班级内指定角色的账号
func (r *userRepo) ListByClassAndRole(ctx context.Context, className, role string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("class_name = ? AND role = ?", className, role).
		Order("id ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}
