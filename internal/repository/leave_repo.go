package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"salm/portal/internal/model"
	pkgerrors "salm/portal/pkg/errors"
)

// LeaveRepository 请假申请数据访问接口
type LeaveRepository interface {
	Create(ctx context.Context, leave *model.LeaveRequest) error
	GetByID(ctx context.Context, id int64) (*model.LeaveRequest, error)
	ListByStudent(ctx context.Context, studentID int64) ([]model.LeaveRequest, error)
	ListByClassAndStatus(ctx context.Context, className, status string) ([]model.LeaveRequest, error)
	CountApprovedOverlaps(ctx context.Context, className string, start, end time.Time) (int64, error)
	Approve(ctx context.Context, leave *model.LeaveRequest, days int, comment string) error
	Reject(ctx context.Context, leave *model.LeaveRequest, comment string) error
}

type leaveRepo struct {
	db *gorm.DB
}

// NewLeaveRepo 创建 LeaveRepository 实例
func NewLeaveRepo(db *gorm.DB) LeaveRepository {
	return &leaveRepo{db: db}
}

func (r *leaveRepo) Create(ctx context.Context, leave *model.LeaveRequest) error {
	return r.db.WithContext(ctx).Create(leave).Error
}

func (r *leaveRepo) GetByID(ctx context.Context, id int64) (*model.LeaveRequest, error) {
	var leave model.LeaveRequest
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("id = ?", id).
		First(&leave).Error
	if err != nil {
		return nil, err
	}
	return &leave, nil
}

// ListByStudent 学生本人的请假记录，最新在前
func (r *leaveRepo) ListByStudent(ctx context.Context, studentID int64) ([]model.LeaveRequest, error) {
	var leaves []model.LeaveRequest
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").Order("id DESC").
		Find(&leaves).Error
	return leaves, err
}

// ListByClassAndStatus 某班级指定状态的请假（附带学生信息）
// 待审批按提交时间倒序，已通过按开始日期升序
func (r *leaveRepo) ListByClassAndStatus(ctx context.Context, className, status string) ([]model.LeaveRequest, error) {
	var leaves []model.LeaveRequest
	q := r.db.WithContext(ctx).
		Preload("Student").
		Joins("JOIN users ON users.id = leave_requests.student_id").
		Where("leave_requests.status = ? AND users.class_name = ?", status, className)

	if status == model.LeaveStatusApproved {
		q = q.Order("leave_requests.start_date ASC").Order("leave_requests.id ASC")
	} else {
		q = q.Order("leave_requests.created_at DESC").Order("leave_requests.id DESC")
	}
	err := q.Find(&leaves).Error
	return leaves, err
}

// CountApprovedOverlaps 统计同班已通过且与 [start,end] 有交集的请假数
func (r *leaveRepo) CountApprovedOverlaps(ctx context.Context, className string, start, end time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.LeaveRequest{}).
		Joins("JOIN users ON users.id = leave_requests.student_id").
		Where("leave_requests.status = ? AND users.class_name = ?", model.LeaveStatusApproved, className).
		Where("leave_requests.start_date <= ? AND leave_requests.end_date >= ?", end, start).
		Count(&count).Error
	return count, err
}

// Approve 通过请假：扣减余额并更新状态，在同一事务中完成
// 以 status=PENDING 与余额充足作为乐观条件，并发修改时返回 ErrOptimisticLock
func (r *leaveRepo) Approve(ctx context.Context, leave *model.LeaveRequest, days int, comment string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.User{}).
			Where("id = ? AND casual_balance >= ?", leave.StudentID, days).
			Updates(map[string]interface{}{
				"casual_balance": gorm.Expr("casual_balance - ?", days),
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}

		return decide(tx, leave, model.LeaveStatusApproved, comment)
	})
}

// Reject 驳回请假
func (r *leaveRepo) Reject(ctx context.Context, leave *model.LeaveRequest, comment string) error {
	return decide(r.db.WithContext(ctx), leave, model.LeaveStatusRejected, comment)
}

func decide(db *gorm.DB, leave *model.LeaveRequest, status, comment string) error {
	var commentVal *string
	if comment != "" {
		commentVal = &comment
	}
	now := time.Now()

	result := db.Model(&model.LeaveRequest{}).
		Where("id = ? AND status = ?", leave.ID, model.LeaveStatusPending).
		Updates(map[string]interface{}{
			"status":           status,
			"decision_comment": commentVal,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}

	leave.Status = status
	leave.DecisionComment = commentVal
	leave.UpdatedAt = now
	return nil
}
