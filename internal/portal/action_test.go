package portal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"salm/portal/internal/dto"
	apperrors "salm/portal/pkg/errors"
)

// newReviewFixture 准备一个已加载 1,2,3 的队列，动作请求交给 act 处理
func newReviewFixture(t *testing.T, act func(path string, body *dto.LeaveActionRequest) (interface{}, error)) (*fakeCaller, *PendingQueue, *ActionFlow) {
	t.Helper()
	gw := newFakeCaller(func(method, path string, body interface{}) (interface{}, error) {
		if method == http.MethodGet {
			return pending(1, 2, 3), nil
		}
		return act(path, body.(*dto.LeaveActionRequest))
	})
	q := NewPendingQueue(gw, time.Minute, false, zap.NewNop())
	if err := q.Load(context.Background()); err != nil {
		t.Fatalf("加载队列失败: %v", err)
	}
	return gw, q, NewActionFlow(gw, q, zap.NewNop())
}

func TestApprove_RemovesFromQueue(t *testing.T) {
	gw, q, flow := newReviewFixture(t, func(_ string, _ *dto.LeaveActionRequest) (interface{}, error) {
		return &dto.LeaveRequest{ID: 2, Status: dto.StatusApproved}, nil
	})

	leave, err := flow.Approve(context.Background(), 2)
	if err != nil {
		t.Fatalf("通过失败: %v", err)
	}
	if leave.Status != dto.StatusApproved {
		t.Errorf("期望 APPROVED，实际 %s", leave.Status)
	}

	c := gw.last()
	if c.method != http.MethodPut || c.path != "/leaves/2/approve" {
		t.Errorf("期望 PUT /leaves/2/approve，实际 %s %s", c.method, c.path)
	}
	if body := c.body.(*dto.LeaveActionRequest); body.Comment != "" {
		t.Errorf("通过时 comment 应为空，实际 %q", body.Comment)
	}
	if got := ids(q.Snapshot().Items); !equalIDs(got, []int64{1, 3}) {
		t.Errorf("期望队列 [1 3]，实际 %v", got)
	}
	if flow.Err() != nil || flow.Modal().Open {
		t.Errorf("通过后状态不符: %+v", flow.State())
	}
}

func TestDecision_WithoutQueue(t *testing.T) {
	gw := newFakeCaller(func(_, path string, _ interface{}) (interface{}, error) {
		if path == "/leaves/5/approve" {
			return &dto.LeaveRequest{ID: 5, Status: dto.StatusApproved}, nil
		}
		return &dto.LeaveRequest{ID: 6, Status: dto.StatusRejected}, nil
	})
	flow := NewActionFlow(gw, nil, zap.NewNop())

	if leave, err := flow.Approve(context.Background(), 5); err != nil || leave.Status != dto.StatusApproved {
		t.Fatalf("无队列时通过失败: %v", err)
	}
	flow.OpenReject(6)
	flow.SetComment("Missing certificate")
	if leave, err := flow.ConfirmReject(context.Background()); err != nil || leave.Status != dto.StatusRejected {
		t.Fatalf("无队列时驳回失败: %v", err)
	}
	if flow.Modal().Open || gw.count() != 2 {
		t.Errorf("状态不符: %+v，请求数 %d", flow.State(), gw.count())
	}
}

func TestApprove_FailureKeepsEntry(t *testing.T) {
	_, q, flow := newReviewFixture(t, func(string, *dto.LeaveActionRequest) (interface{}, error) {
		return nil, &apperrors.APIError{StatusCode: 400, Message: "Student has no remaining casual leave"}
	})

	if _, err := flow.Approve(context.Background(), 2); err == nil {
		t.Fatal("期望失败")
	}
	if got := ids(q.Snapshot().Items); !equalIDs(got, []int64{1, 2, 3}) {
		t.Errorf("失败时不应移除条目，实际 %v", got)
	}
	if apperrors.Message(flow.Err(), "") != "Student has no remaining casual leave" {
		t.Errorf("错误应原样记录，实际 %v", flow.Err())
	}
}

func TestApprove_RepeatIsHarmless(t *testing.T) {
	_, q, flow := newReviewFixture(t, func(string, *dto.LeaveActionRequest) (interface{}, error) {
		return &dto.LeaveRequest{ID: 2, Status: dto.StatusApproved}, nil
	})

	for i := 0; i < 2; i++ {
		if _, err := flow.Approve(context.Background(), 2); err != nil {
			t.Fatalf("第 %d 次通过失败: %v", i+1, err)
		}
	}
	if got := ids(q.Snapshot().Items); !equalIDs(got, []int64{1, 3}) {
		t.Errorf("重复通过后队列应不变，实际 %v", got)
	}
}

// ── 驳回对话框 ──

func TestReject_ConfirmGating(t *testing.T) {
	gw, _, flow := newReviewFixture(t, func(string, *dto.LeaveActionRequest) (interface{}, error) {
		return &dto.LeaveRequest{Status: dto.StatusRejected}, nil
	})

	if flow.CanConfirm() {
		t.Error("对话框未打开时不可确认")
	}
	if _, err := flow.ConfirmReject(context.Background()); !errors.Is(err, ErrModalClosed) {
		t.Errorf("期望 ErrModalClosed，实际 %v", err)
	}

	flow.OpenReject(3)
	for _, draft := range []string{"", "   ", "\t\n"} {
		flow.SetComment(draft)
		if flow.CanConfirm() {
			t.Errorf("理由 %q 不应允许确认", draft)
		}
		if _, err := flow.ConfirmReject(context.Background()); !errors.Is(err, ErrEmptyComment) {
			t.Errorf("期望 ErrEmptyComment，实际 %v", err)
		}
	}
	if n := gw.count(); n != 1 {
		t.Errorf("理由为空时不应发请求，实际请求 %d 次（含加载）", n)
	}

	flow.SetComment("Insufficient documentation")
	if !flow.CanConfirm() {
		t.Error("填写理由后应允许确认")
	}
}

func TestReject_SuccessClosesModal(t *testing.T) {
	gw, q, flow := newReviewFixture(t, func(string, *dto.LeaveActionRequest) (interface{}, error) {
		return &dto.LeaveRequest{ID: 3, Status: dto.StatusRejected}, nil
	})

	flow.OpenReject(3)
	flow.SetComment("Insufficient documentation")
	if _, err := flow.ConfirmReject(context.Background()); err != nil {
		t.Fatalf("驳回失败: %v", err)
	}

	c := gw.last()
	if c.path != "/leaves/3/reject" || c.body.(*dto.LeaveActionRequest).Comment != "Insufficient documentation" {
		t.Errorf("驳回请求不符: %s %+v", c.path, c.body)
	}
	if flow.Modal().Open {
		t.Error("驳回成功后应关闭对话框")
	}
	if got := ids(q.Snapshot().Items); !equalIDs(got, []int64{1, 2}) {
		t.Errorf("期望队列 [1 2]，实际 %v", got)
	}
}

func TestReject_FailureKeepsDraft(t *testing.T) {
	_, q, flow := newReviewFixture(t, func(string, *dto.LeaveActionRequest) (interface{}, error) {
		return nil, &apperrors.APIError{StatusCode: 500, Message: "Internal Server Error"}
	})

	flow.OpenReject(3)
	flow.SetComment("Need a medical certificate")
	if _, err := flow.ConfirmReject(context.Background()); err == nil {
		t.Fatal("期望失败")
	}

	m := flow.Modal()
	if !m.Open || m.TargetID != 3 || m.Comment != "Need a medical certificate" {
		t.Errorf("失败时对话框与草稿应保持不变，实际 %+v", m)
	}
	if flow.Err() == nil {
		t.Error("失败时应记录错误")
	}
	if len(q.Snapshot().Items) != 3 {
		t.Error("失败时不应移除条目")
	}
}

func TestReject_CancelMakesNoCall(t *testing.T) {
	gw, _, flow := newReviewFixture(t, func(string, *dto.LeaveActionRequest) (interface{}, error) {
		return &dto.LeaveRequest{}, nil
	})

	flow.OpenReject(1)
	flow.SetComment("draft")
	flow.Cancel()

	if flow.Modal().Open {
		t.Error("Cancel 后对话框应关闭")
	}
	if gw.count() != 1 {
		t.Errorf("Cancel 不应发请求，实际请求 %d 次（含加载）", gw.count())
	}
	flow.SetComment("ignored")
	if flow.Modal().Comment != "" {
		t.Error("对话框关闭时应忽略草稿更新")
	}
}

// ── 并发动作 ──

func TestAction_PerIDInFlight(t *testing.T) {
	var mu sync.Mutex
	gates := map[string]chan struct{}{
		"/leaves/1/approve": make(chan struct{}),
	}
	_, q, flow := newReviewFixture(t, func(path string, _ *dto.LeaveActionRequest) (interface{}, error) {
		mu.Lock()
		gate := gates[path]
		mu.Unlock()
		if gate != nil {
			<-gate
		}
		return &dto.LeaveRequest{Status: dto.StatusApproved}, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := flow.Approve(context.Background(), 1)
		done <- err
	}()
	eventually(t, func() bool { return flow.InFlight(1) }, "1 号在途")

	if _, err := flow.Approve(context.Background(), 1); !errors.Is(err, ErrActionInFlight) {
		t.Errorf("期望 ErrActionInFlight，实际 %v", err)
	}

	// 其他条目仍可操作
	if _, err := flow.Approve(context.Background(), 2); err != nil {
		t.Fatalf("2 号通过失败: %v", err)
	}
	if flow.InFlight(2) {
		t.Error("2 号完成后不应在途")
	}
	if st := flow.State(); len(st.InFlight) != 1 || st.InFlight[0] != 1 {
		t.Errorf("期望仅 1 号在途，实际 %v", st.InFlight)
	}

	close(gates["/leaves/1/approve"])
	if err := <-done; err != nil {
		t.Fatalf("1 号通过失败: %v", err)
	}
	if got := ids(q.Snapshot().Items); !equalIDs(got, []int64{3}) {
		t.Errorf("期望队列 [3]，实际 %v", got)
	}
	if flow.InFlight(1) {
		t.Errorf("1 号完成后不应在途: %v", flow.State().InFlight)
	}
}
