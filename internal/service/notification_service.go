package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"salm/portal/config"
	"salm/portal/internal/dto"
	"salm/portal/internal/model"
	"salm/portal/internal/repository"
)

const defaultNotifyTimeout = 10 * time.Second

// NotificationService 请假通知
// 提交后通知班级教师，审批后通知学生；投递在后台进行，失败只记日志，不影响请求结果
type NotificationService interface {
	LeaveApplied(leave *model.LeaveRequest)
	LeaveDecided(leave *model.LeaveRequest, comment string)
	// Wait 等待所有后台投递结束（优雅关闭时调用）
	Wait()
}

type notificationService struct {
	cfg      *config.NotifyConfig
	repo     *repository.Repository
	notifier Notifier
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(cfg *config.NotifyConfig, repo *repository.Repository, notifier Notifier, logger *zap.Logger) NotificationService {
	return &notificationService{cfg: cfg, repo: repo, notifier: notifier, logger: logger}
}

func (s *notificationService) LeaveApplied(leave *model.LeaveRequest) {
	s.dispatch(snapshotLeave(leave), model.NotificationLeaveApplied, "")
}

func (s *notificationService) LeaveDecided(leave *model.LeaveRequest, comment string) {
	typ := model.NotificationLeaveRejected
	if leave.Status == model.LeaveStatusApproved {
		typ = model.NotificationLeaveApproved
	}
	s.dispatch(snapshotLeave(leave), typ, comment)
}

func (s *notificationService) Wait() {
	s.wg.Wait()
}

// snapshotLeave 复制一份交给后台协程，避免与请求协程共享
func snapshotLeave(leave *model.LeaveRequest) model.LeaveRequest {
	cp := *leave
	if leave.Student != nil {
		st := *leave.Student
		cp.Student = &st
	}
	return cp
}

func (s *notificationService) dispatch(leave model.LeaveRequest, typ, comment string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("请假通知异常", zap.Int64("leave_id", leave.ID), zap.Any("panic", r))
			}
		}()

		timeout := s.cfg.Timeout
		if timeout <= 0 {
			timeout = defaultNotifyTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.deliver(ctx, &leave, typ, comment); err != nil {
			s.logger.Warn("请假通知发送失败",
				zap.Int64("leave_id", leave.ID),
				zap.String("type", typ),
				zap.Error(err),
			)
		}
	}()
}

type recipient struct {
	userID *int64
	email  string
}

func (s *notificationService) deliver(ctx context.Context, leave *model.LeaveRequest, typ, comment string) error {
	student := leave.Student
	if student == nil {
		u, err := s.repo.User.GetByID(ctx, leave.StudentID)
		if err != nil {
			return fmt.Errorf("查询学生失败: %w", err)
		}
		student = u
	}

	recipients, err := s.recipients(ctx, student, typ)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		s.logger.Info("请假通知无收件人", zap.Int64("leave_id", leave.ID), zap.String("type", typ))
		return nil
	}

	var errs []error
	for _, r := range recipients {
		msg := buildMessage(typ, student, leave, comment)
		msg.To = r.email
		sendErr := s.notifier.Send(ctx, msg)
		s.record(ctx, leave.ID, r, typ, msg, sendErr)
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.email, sendErr))
		}
	}
	return errors.Join(errs...)
}

// recipients 新申请发给同班教师，无教师账号时使用兜底邮箱；审批结果发给学生
func (s *notificationService) recipients(ctx context.Context, student *model.User, typ string) ([]recipient, error) {
	if typ != model.NotificationLeaveApplied {
		id := student.ID
		return []recipient{{userID: &id, email: student.Email}}, nil
	}

	var out []recipient
	if student.ClassName != nil && *student.ClassName != "" {
		faculty, err := s.repo.User.ListByClassAndRole(ctx, *student.ClassName, model.RoleFaculty)
		if err != nil {
			return nil, fmt.Errorf("查询班级教师失败: %w", err)
		}
		for i := range faculty {
			id := faculty[i].ID
			out = append(out, recipient{userID: &id, email: faculty[i].Email})
		}
	}
	if len(out) == 0 && s.cfg.FacultyEmail != "" {
		out = append(out, recipient{email: s.cfg.FacultyEmail})
	}
	return out, nil
}

func (s *notificationService) record(ctx context.Context, leaveID int64, r recipient, typ string, msg *Message, sendErr error) {
	if s.repo.Notification == nil {
		return
	}
	n := &model.Notification{
		LeaveID:   leaveID,
		UserID:    r.userID,
		Recipient: r.email,
		Type:      typ,
		Subject:   msg.Subject,
		Content:   msg.Body,
		Channel:   s.notifier.Channel(),
		Status:    model.NotificationSent,
	}
	if sendErr != nil {
		text := sendErr.Error()
		n.Status = model.NotificationFailed
		n.Error = &text
	}
	if err := s.repo.Notification.Create(ctx, n); err != nil {
		s.logger.Warn("写入通知记录失败", zap.Int64("leave_id", leaveID), zap.Error(err))
	}
}

// ── 邮件内容 ──

func buildMessage(typ string, student *model.User, leave *model.LeaveRequest, comment string) *Message {
	start := leave.StartDate.Format(dto.DateLayout)
	end := leave.EndDate.Format(dto.DateLayout)

	if typ == model.NotificationLeaveApplied {
		class := "N/A"
		if student.ClassName != nil && *student.ClassName != "" {
			class = *student.ClassName
		}
		var b strings.Builder
		b.WriteString("Dear Faculty,\n\n")
		b.WriteString("A new leave request has been submitted.\n\n")
		fmt.Fprintf(&b, "Student: %s\nClass: %s\nDates: %s to %s\nCategory: %s\nReason: %s\n\n",
			student.Name, class, start, end, leave.AutoType, leave.Reason)
		b.WriteString("Please review this request in the leave portal.\n\nRegards,\nLeave Portal")

		subjectClass := class
		if subjectClass == "N/A" {
			subjectClass = "Unknown Class"
		}
		return &Message{
			Subject: fmt.Sprintf("New Leave Request from %s (%s)", student.Name, subjectClass),
			Body:    b.String(),
		}
	}

	action := model.LeaveStatusRejected
	if typ == model.NotificationLeaveApproved {
		action = model.LeaveStatusApproved
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", student.Name)
	fmt.Fprintf(&b, "Your leave request from %s to %s has been %s.\n\n", start, end, action)
	if c := strings.TrimSpace(comment); c != "" {
		fmt.Fprintf(&b, "Message from Faculty:\n%s\n\n", c)
	}
	b.WriteString("You can view the details in your student portal.\n\nRegards,\nLeave Portal")
	return &Message{
		Subject: fmt.Sprintf("Leave Request %s: %s to %s", action, start, end),
		Body:    b.String(),
	}
}
