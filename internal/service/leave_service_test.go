package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"salm/portal/config"
	"salm/portal/internal/dto"
	"salm/portal/internal/model"
	pkgerrors "salm/portal/pkg/errors"
)

var testPolicy = config.PolicyConfig{TotalLeaves: 10, Threshold: 75, DefaultWorkingDays: 100}

type leaveFixture struct {
	svc     LeaveService
	users   *mockUserRepo
	leaves  *mockLeaveRepo
	student *model.User
	faculty *model.User
}

func (f *leaveFixture) studentActor() Actor {
	return Actor{UserID: f.student.ID, Role: model.RoleStudent, ClassName: "CS-A"}
}

func (f *leaveFixture) facultyActor() Actor {
	return Actor{UserID: f.faculty.ID, Role: model.RoleFaculty, ClassName: "CS-A"}
}

func newLeaveFixture(t *testing.T) *leaveFixture {
	t.Helper()
	repo, users, leaves := newMockRepository()
	class := "CS-A"
	f := &leaveFixture{
		svc:     NewLeaveService(&testPolicy, repo, nil, zap.NewNop()),
		users:   users,
		leaves:  leaves,
		student: &model.User{Name: "Prem", Email: "s@college.com", Role: model.RoleStudent, ClassName: &class, CasualBalance: 10, TotalWorkingDays: 100},
		faculty: &model.User{Name: "Dr. Faculty", Email: "f@college.com", Role: model.RoleFaculty, ClassName: &class},
	}
	_ = users.Create(context.Background(), f.student)
	_ = users.Create(context.Background(), f.faculty)
	return f
}

func (f *leaveFixture) apply(t *testing.T, start, end, reason string) *dto.LeaveRequest {
	t.Helper()
	l, err := f.svc.Apply(context.Background(), f.studentActor(), &dto.ApplyLeaveRequest{StartDate: start, EndDate: end, Reason: reason})
	if err != nil {
		t.Fatalf("提交请假失败: %v", err)
	}
	return l
}

// ── 出勤预估 ──

func TestProject(t *testing.T) {
	user := &model.User{CasualBalance: 8, TotalWorkingDays: 100, AbsentDays: 20}
	p := Project(&testPolicy, user, 6)

	if p.UsedLeaves != 2 || p.RemainingLeaves != 8 {
		t.Errorf("余额不符: %+v", p)
	}
	if p.CurrentAttendancePercentage != 80 || p.ProjectedAttendancePercentage != 74 {
		t.Errorf("出勤率不符: 当前 %v 预估 %v", p.CurrentAttendancePercentage, p.ProjectedAttendancePercentage)
	}
	if !p.WillDropBelowThreshold || p.Threshold != 75 {
		t.Error("低于 75% 时应提示")
	}
	if p.ProjectedRemainingLeaves != 2 || p.ProjectedUsedLeaves != 8 {
		t.Errorf("预估余额不符: %+v", p)
	}
}

func TestProject_ClampsAndDefaults(t *testing.T) {
	user := &model.User{CasualBalance: 1, TotalWorkingDays: 0, AbsentDays: 0}
	p := Project(&testPolicy, user, 300)

	if p.TotalWorkingDays != 100 {
		t.Errorf("工作日为 0 时应使用默认值，实际 %d", p.TotalWorkingDays)
	}
	if p.ProjectedAttendancePercentage != 0 {
		t.Errorf("出勤率不应为负，实际 %v", p.ProjectedAttendancePercentage)
	}
	if p.ProjectedRemainingLeaves != 0 || p.ProjectedUsedLeaves != 10 {
		t.Errorf("预估余额应截断为 0，实际 %+v", p)
	}
}

func TestProject_RoundsToOneDecimal(t *testing.T) {
	user := &model.User{CasualBalance: 10, TotalWorkingDays: 90, AbsentDays: 1}
	p := Project(&testPolicy, user, 0)
	if p.CurrentAttendancePercentage != 98.9 {
		t.Errorf("期望 98.9，实际 %v", p.CurrentAttendancePercentage)
	}
}

func TestSummary_RejectsNegativeDays(t *testing.T) {
	f := newLeaveFixture(t)
	if _, err := f.svc.Summary(context.Background(), f.studentActor(), -1); !errors.Is(err, ErrInvalidRequestedDays) {
		t.Errorf("期望 ErrInvalidRequestedDays，实际 %v", err)
	}
	if _, err := f.svc.Summary(context.Background(), Actor{UserID: 999}, 1); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际 %v", err)
	}
}

// ── 提交 ──

func TestApply_ClassifiesAndCountsConflicts(t *testing.T) {
	f := newLeaveFixture(t)

	first := f.apply(t, "2024-01-10", "2024-01-12", "High fever")
	if first.Status != model.LeaveStatusPending || first.AutoType != model.LeaveTypeMedical || first.ConflictCount != 0 {
		t.Errorf("提交结果不符: %+v", first)
	}
	if _, err := f.svc.Approve(context.Background(), f.facultyActor(), first.ID, ""); err != nil {
		t.Fatalf("通过失败: %v", err)
	}

	second := f.apply(t, "2024-01-12", "2024-01-14", "sister's marriage")
	if second.AutoType != model.LeaveTypePersonal || second.ConflictCount != 1 {
		t.Errorf("期望 PERSONAL 且冲突 1，实际 %+v", second)
	}
}

func TestApply_InvalidDates(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, f.studentActor(), &dto.ApplyLeaveRequest{StartDate: "2024-01-12", EndDate: "2024-01-10", Reason: "trip"})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("期望 ErrInvalidDateRange，实际 %v", err)
	}
	_, err = f.svc.Apply(ctx, f.studentActor(), &dto.ApplyLeaveRequest{StartDate: "12/01/2024", EndDate: "2024-01-10", Reason: "trip"})
	if !errors.Is(err, ErrInvalidDate) {
		t.Errorf("期望 ErrInvalidDate，实际 %v", err)
	}
}

// ── 审批 ──

func TestApprove_DeductsBalance(t *testing.T) {
	f := newLeaveFixture(t)
	l := f.apply(t, "2024-01-10", "2024-01-12", "fever")

	got, err := f.svc.Approve(context.Background(), f.facultyActor(), l.ID, "")
	if err != nil {
		t.Fatalf("通过失败: %v", err)
	}
	if got.Status != model.LeaveStatusApproved {
		t.Errorf("期望 APPROVED，实际 %s", got.Status)
	}
	if f.student.CasualBalance != 7 {
		t.Errorf("期望余额 7，实际 %d", f.student.CasualBalance)
	}

	if _, err := f.svc.Approve(context.Background(), f.facultyActor(), l.ID, ""); !errors.Is(err, ErrLeaveAlreadyDecided) {
		t.Errorf("重复审批期望 ErrLeaveAlreadyDecided，实际 %v", err)
	}
}

func TestApprove_InsufficientBalance(t *testing.T) {
	f := newLeaveFixture(t)
	f.student.CasualBalance = 2
	l := f.apply(t, "2024-01-10", "2024-01-12", "fever")

	_, err := f.svc.Approve(context.Background(), f.facultyActor(), l.ID, "")
	var balErr *InsufficientBalanceError
	if !errors.As(err, &balErr) || balErr.Has != 2 || balErr.Needs != 3 {
		t.Errorf("期望余额不足错误 (2,3)，实际 %v", err)
	}
}

func TestApprove_Guards(t *testing.T) {
	f := newLeaveFixture(t)
	l := f.apply(t, "2024-01-10", "2024-01-10", "fever")
	ctx := context.Background()

	if _, err := f.svc.Approve(ctx, f.facultyActor(), 999, ""); !errors.Is(err, ErrLeaveNotFound) {
		t.Errorf("期望 ErrLeaveNotFound，实际 %v", err)
	}
	other := Actor{UserID: f.faculty.ID, Role: model.RoleFaculty, ClassName: "CS-B"}
	if _, err := f.svc.Approve(ctx, other, l.ID, ""); !errors.Is(err, ErrNotSameClass) {
		t.Errorf("期望 ErrNotSameClass，实际 %v", err)
	}

	f.leaves.approveErr = pkgerrors.ErrOptimisticLock
	if _, err := f.svc.Approve(ctx, f.facultyActor(), l.ID, ""); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际 %v", err)
	}
}

func TestReject_StoresComment(t *testing.T) {
	f := newLeaveFixture(t)
	l := f.apply(t, "2024-01-10", "2024-01-12", "fever")

	got, err := f.svc.Reject(context.Background(), f.facultyActor(), l.ID, "Insufficient documentation")
	if err != nil {
		t.Fatalf("驳回失败: %v", err)
	}
	if got.Status != model.LeaveStatusRejected {
		t.Errorf("期望 REJECTED，实际 %s", got.Status)
	}
	stored := f.leaves.leaves[l.ID]
	if stored.DecisionComment == nil || *stored.DecisionComment != "Insufficient documentation" {
		t.Errorf("驳回理由未保存: %+v", stored)
	}
	if f.student.CasualBalance != 10 {
		t.Errorf("驳回不应扣减余额，实际 %d", f.student.CasualBalance)
	}
}

// ── 列表 ──

func TestListPendingAndCalendar(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()
	a := f.apply(t, "2024-01-20", "2024-01-20", "exam")
	b := f.apply(t, "2024-01-10", "2024-01-11", "fever")
	c := f.apply(t, "2024-02-01", "2024-02-01", "family")

	for _, id := range []int64{a.ID, b.ID} {
		if _, err := f.svc.Approve(ctx, f.facultyActor(), id, ""); err != nil {
			t.Fatalf("通过失败: %v", err)
		}
	}

	pending, err := f.svc.ListPending(ctx, f.facultyActor())
	if err != nil {
		t.Fatalf("查询待审批失败: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != c.ID || pending[0].StudentName != "Prem" {
		t.Errorf("待审批不符: %+v", pending)
	}

	cal, err := f.svc.Calendar(ctx, f.facultyActor())
	if err != nil {
		t.Fatalf("查询日历失败: %v", err)
	}
	if len(cal) != 2 || cal[0].StartDate != "2024-01-10" || cal[1].StartDate != "2024-01-20" {
		t.Errorf("日历应按开始日期升序，实际 %+v", cal)
	}

	none, _ := f.svc.ListPending(ctx, Actor{UserID: f.faculty.ID, Role: model.RoleFaculty})
	if none == nil || len(none) != 0 {
		t.Errorf("无班级的教师应得到空列表，实际 %v", none)
	}

	mine, _ := f.svc.ListMine(ctx, f.studentActor())
	if len(mine) != 3 || mine[0].ID != c.ID {
		t.Errorf("我的请假应最新在前，实际 %+v", mine)
	}
	if _, err := time.Parse(time.RFC3339, mine[0].CreatedAt); err != nil {
		t.Errorf("created_at 应为 RFC3339，实际 %s", mine[0].CreatedAt)
	}
}
