package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"salm/portal/internal/model"
	"salm/portal/internal/repository"
	pkgerrors "salm/portal/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmailAndRole(_ context.Context, email, role string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email && u.Role == role {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByClassAndRole(_ context.Context, className, role string) ([]model.User, error) {
	var out []model.User
	for _, u := range m.users {
		if u.Role == role && u.ClassName != nil && *u.ClassName == className {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.ID] = user
	return nil
}

// ── Mock LeaveRepository ──

type mockLeaveRepo struct {
	users  *mockUserRepo
	leaves map[int64]*model.LeaveRequest
	nextID int64

	approveErr error
}

func newMockLeaveRepo(users *mockUserRepo) *mockLeaveRepo {
	return &mockLeaveRepo{users: users, leaves: make(map[int64]*model.LeaveRequest)}
}

func (m *mockLeaveRepo) Create(_ context.Context, leave *model.LeaveRequest) error {
	m.nextID++
	leave.ID = m.nextID
	leave.CreatedAt = time.Date(2024, 1, 1, 0, 0, int(m.nextID), 0, time.UTC)
	m.leaves[leave.ID] = leave
	return nil
}

func (m *mockLeaveRepo) GetByID(_ context.Context, id int64) (*model.LeaveRequest, error) {
	l, ok := m.leaves[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	cp.Student = m.users.users[l.StudentID]
	return &cp, nil
}

func (m *mockLeaveRepo) ListByStudent(_ context.Context, studentID int64) ([]model.LeaveRequest, error) {
	var out []model.LeaveRequest
	for _, l := range m.leaves {
		if l.StudentID == studentID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockLeaveRepo) ListByClassAndStatus(_ context.Context, className, status string) ([]model.LeaveRequest, error) {
	var out []model.LeaveRequest
	for _, l := range m.leaves {
		st := m.users.users[l.StudentID]
		if l.Status != status || st == nil || st.ClassName == nil || *st.ClassName != className {
			continue
		}
		cp := *l
		cp.Student = st
		out = append(out, cp)
	}
	if status == model.LeaveStatusApproved {
		sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	return out, nil
}

func (m *mockLeaveRepo) CountApprovedOverlaps(ctx context.Context, className string, start, end time.Time) (int64, error) {
	approved, _ := m.ListByClassAndStatus(ctx, className, model.LeaveStatusApproved)
	var n int64
	for _, l := range approved {
		if !l.StartDate.After(end) && !l.EndDate.Before(start) {
			n++
		}
	}
	return n, nil
}

func (m *mockLeaveRepo) Approve(_ context.Context, leave *model.LeaveRequest, days int, comment string) error {
	if m.approveErr != nil {
		return m.approveErr
	}
	stored := m.leaves[leave.ID]
	st := m.users.users[leave.StudentID]
	if stored == nil || stored.Status != model.LeaveStatusPending || st.CasualBalance < days {
		return pkgerrors.ErrOptimisticLock
	}
	st.CasualBalance -= days
	m.decide(stored, leave, model.LeaveStatusApproved, comment)
	return nil
}

func (m *mockLeaveRepo) Reject(_ context.Context, leave *model.LeaveRequest, comment string) error {
	stored := m.leaves[leave.ID]
	if stored == nil || stored.Status != model.LeaveStatusPending {
		return pkgerrors.ErrOptimisticLock
	}
	m.decide(stored, leave, model.LeaveStatusRejected, comment)
	return nil
}

func (m *mockLeaveRepo) decide(stored, leave *model.LeaveRequest, status, comment string) {
	stored.Status = status
	leave.Status = status
	if comment != "" {
		stored.DecisionComment = &comment
		leave.DecisionComment = &comment
	}
}

// ── Mock NotificationRepository ──

// 通知记录由后台协程写入，需要加锁
type mockNotificationRepo struct {
	mu      sync.Mutex
	records []model.Notification
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *n)
	return nil
}

func (m *mockNotificationRepo) ListByLeave(_ context.Context, leaveID int64) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Notification
	for _, n := range m.records {
		if n.LeaveID == leaveID {
			out = append(out, n)
		}
	}
	return out, nil
}

// newMockRepository 组装 mock 聚合
func newMockRepository() (*repository.Repository, *mockUserRepo, *mockLeaveRepo) {
	users := newMockUserRepo()
	leaves := newMockLeaveRepo(users)
	return &repository.Repository{User: users, Leave: leaves, Notification: &mockNotificationRepo{}}, users, leaves
}
