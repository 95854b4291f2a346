package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"salm/portal/config"
	"salm/portal/internal/dto"
	"salm/portal/internal/model"
	"salm/portal/internal/repository"
)

var (
	ErrInvalidDate          = errors.New("日期格式无效")
	ErrInvalidDateRange     = errors.New("结束日期早于开始日期")
	ErrInvalidRequestedDays = errors.New("请假天数不能为负数")
	ErrLeaveNotFound        = errors.New("请假申请不存在")
	ErrStudentNotFound      = errors.New("学生不存在")
	ErrNotSameClass         = errors.New("教师不负责该班级")
	ErrLeaveAlreadyDecided  = errors.New("请假申请已处理")
)

// InsufficientBalanceError 学生剩余假期不足
type InsufficientBalanceError struct {
	Has   int
	Needs int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("剩余假期不足：剩余 %d 天，需要 %d 天", e.Has, e.Needs)
}

// Actor 当前请求的用户（由 JWT 中间件注入）
type Actor struct {
	UserID    int64
	Role      string
	ClassName string
}

// LeaveService 请假业务接口
type LeaveService interface {
	Summary(ctx context.Context, actor Actor, requestedDays int) (*dto.AttendanceProjection, error)
	Apply(ctx context.Context, actor Actor, req *dto.ApplyLeaveRequest) (*dto.LeaveRequest, error)
	ListMine(ctx context.Context, actor Actor) ([]dto.LeaveRequest, error)
	ListPending(ctx context.Context, actor Actor) ([]dto.PendingLeave, error)
	Calendar(ctx context.Context, actor Actor) ([]dto.CalendarEntry, error)
	Approve(ctx context.Context, actor Actor, leaveID int64, comment string) (*dto.LeaveRequest, error)
	Reject(ctx context.Context, actor Actor, leaveID int64, comment string) (*dto.LeaveRequest, error)
}

type leaveService struct {
	policy *config.PolicyConfig
	repo   *repository.Repository
	notify NotificationService
	logger *zap.Logger
}

// NewLeaveService 创建 LeaveService 实例；notify 为 nil 时不发送通知
func NewLeaveService(policy *config.PolicyConfig, repo *repository.Repository, notify NotificationService, logger *zap.Logger) LeaveService {
	return &leaveService{policy: policy, repo: repo, notify: notify, logger: logger}
}

// ── 出勤预估 ──

func (s *leaveService) Summary(ctx context.Context, actor Actor, requestedDays int) (*dto.AttendanceProjection, error) {
	if requestedDays < 0 {
		return nil, ErrInvalidRequestedDays
	}
	user, err := s.repo.User.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return Project(s.policy, user, requestedDays), nil
}

// Project 计算出勤影响预估（纯函数，不落库）
func Project(policy *config.PolicyConfig, user *model.User, requestedDays int) *dto.AttendanceProjection {
	total := policy.TotalLeaves
	remaining := user.CasualBalance
	used := total - remaining

	working := user.TotalWorkingDays
	if working <= 0 {
		working = policy.DefaultWorkingDays
	}
	if working <= 0 {
		working = 100
	}
	absent := user.AbsentDays

	currentPct := float64(working-absent) / float64(working) * 100
	projectedAbsent := absent + requestedDays
	projectedPct := float64(working-projectedAbsent) / float64(working) * 100
	willDrop := projectedPct < policy.Threshold

	projectedRemaining := remaining - requestedDays
	if projectedRemaining < 0 {
		projectedRemaining = 0
	}

	return &dto.AttendanceProjection{
		TotalLeavesAllowed:            total,
		UsedLeaves:                    used,
		RemainingLeaves:               remaining,
		TotalWorkingDays:              working,
		CurrentAbsentDays:             absent,
		CurrentAttendancePercentage:   roundPct(currentPct),
		ProjectedAbsentDays:           projectedAbsent,
		ProjectedAttendancePercentage: roundPct(projectedPct),
		WillDropBelowThreshold:        willDrop,
		Threshold:                     policy.Threshold,
		ProjectedUsedLeaves:           total - projectedRemaining,
		ProjectedRemainingLeaves:      projectedRemaining,
	}
}

// roundPct 保留一位小数，且不小于 0
func roundPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	return math.Round(v*10) / 10
}

// ── 学生 ──

func (s *leaveService) Apply(ctx context.Context, actor Actor, req *dto.ApplyLeaveRequest) (*dto.LeaveRequest, error) {
	start, err := time.Parse(dto.DateLayout, req.StartDate)
	if err != nil {
		return nil, ErrInvalidDate
	}
	end, err := time.Parse(dto.DateLayout, req.EndDate)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}

	var conflicts int64
	if actor.ClassName != "" {
		conflicts, err = s.repo.Leave.CountApprovedOverlaps(ctx, actor.ClassName, start, end)
		if err != nil {
			s.logger.Error("统计冲突请假失败", zap.Error(err))
			return nil, err
		}
	}

	leave := &model.LeaveRequest{
		StudentID:     actor.UserID,
		StartDate:     start,
		EndDate:       end,
		Reason:        strings.TrimSpace(req.Reason),
		AutoType:      ClassifyReason(req.Reason),
		Status:        model.LeaveStatusPending,
		ConflictCount: int(conflicts),
	}
	if err := s.repo.Leave.Create(ctx, leave); err != nil {
		s.logger.Error("创建请假申请失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("收到请假申请",
		zap.Int64("leave_id", leave.ID),
		zap.Int64("student_id", actor.UserID),
		zap.String("auto_type", leave.AutoType),
		zap.Int("conflict_count", leave.ConflictCount),
	)
	if s.notify != nil {
		s.notify.LeaveApplied(leave)
	}
	out := toLeaveDTO(leave)
	return &out, nil
}

func (s *leaveService) ListMine(ctx context.Context, actor Actor) ([]dto.LeaveRequest, error) {
	leaves, err := s.repo.Leave.ListByStudent(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LeaveRequest, 0, len(leaves))
	for i := range leaves {
		out = append(out, toLeaveDTO(&leaves[i]))
	}
	return out, nil
}

// ── 教师 ──

func (s *leaveService) ListPending(ctx context.Context, actor Actor) ([]dto.PendingLeave, error) {
	out := make([]dto.PendingLeave, 0)
	if actor.ClassName == "" {
		return out, nil
	}
	leaves, err := s.repo.Leave.ListByClassAndStatus(ctx, actor.ClassName, model.LeaveStatusPending)
	if err != nil {
		return nil, err
	}
	for i := range leaves {
		p := dto.PendingLeave{LeaveRequest: toLeaveDTO(&leaves[i])}
		if st := leaves[i].Student; st != nil {
			p.StudentName = st.Name
			p.ClassName = st.ClassName
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *leaveService) Calendar(ctx context.Context, actor Actor) ([]dto.CalendarEntry, error) {
	out := make([]dto.CalendarEntry, 0)
	if actor.ClassName == "" {
		return out, nil
	}
	leaves, err := s.repo.Leave.ListByClassAndStatus(ctx, actor.ClassName, model.LeaveStatusApproved)
	if err != nil {
		return nil, err
	}
	for _, l := range leaves {
		e := dto.CalendarEntry{
			StartDate: l.StartDate.Format(dto.DateLayout),
			EndDate:   l.EndDate.Format(dto.DateLayout),
			AutoType:  l.AutoType,
			Reason:    l.Reason,
		}
		if l.Student != nil {
			e.StudentName = l.Student.Name
			e.ClassName = l.Student.ClassName
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *leaveService) Approve(ctx context.Context, actor Actor, leaveID int64, comment string) (*dto.LeaveRequest, error) {
	leave, err := s.loadForDecision(ctx, actor, leaveID)
	if err != nil {
		return nil, err
	}

	days := leave.Days()
	if leave.Student.CasualBalance < days {
		return nil, &InsufficientBalanceError{Has: leave.Student.CasualBalance, Needs: days}
	}

	if err := s.repo.Leave.Approve(ctx, leave, days, comment); err != nil {
		return nil, err
	}

	s.logger.Info("请假已通过",
		zap.Int64("leave_id", leave.ID),
		zap.Int64("faculty_id", actor.UserID),
		zap.Int("days", days),
	)
	if s.notify != nil {
		s.notify.LeaveDecided(leave, comment)
	}
	out := toLeaveDTO(leave)
	return &out, nil
}

func (s *leaveService) Reject(ctx context.Context, actor Actor, leaveID int64, comment string) (*dto.LeaveRequest, error) {
	leave, err := s.loadForDecision(ctx, actor, leaveID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Leave.Reject(ctx, leave, comment); err != nil {
		return nil, err
	}

	s.logger.Info("请假已驳回",
		zap.Int64("leave_id", leave.ID),
		zap.Int64("faculty_id", actor.UserID),
	)
	if s.notify != nil {
		s.notify.LeaveDecided(leave, comment)
	}
	out := toLeaveDTO(leave)
	return &out, nil
}

// loadForDecision 查询待审批的请假并校验教师与学生同班
func (s *leaveService) loadForDecision(ctx context.Context, actor Actor, leaveID int64) (*model.LeaveRequest, error) {
	leave, err := s.repo.Leave.GetByID(ctx, leaveID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeaveNotFound
		}
		return nil, err
	}
	if leave.Student == nil {
		return nil, ErrStudentNotFound
	}
	if leave.Student.ClassName == nil || actor.ClassName == "" || *leave.Student.ClassName != actor.ClassName {
		return nil, ErrNotSameClass
	}
	if leave.Status != model.LeaveStatusPending {
		return nil, ErrLeaveAlreadyDecided
	}
	return leave, nil
}

// ── 转换 ──

func toLeaveDTO(l *model.LeaveRequest) dto.LeaveRequest {
	return dto.LeaveRequest{
		ID:            l.ID,
		StartDate:     l.StartDate.Format(dto.DateLayout),
		EndDate:       l.EndDate.Format(dto.DateLayout),
		Reason:        l.Reason,
		AutoType:      l.AutoType,
		Status:        l.Status,
		ConflictCount: l.ConflictCount,
		CreatedAt:     l.CreatedAt.Format(time.RFC3339),
	}
}
