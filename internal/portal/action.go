package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"salm/portal/internal/dto"
)

var (
	// ErrActionInFlight 该请求的审批动作尚未完成
	ErrActionInFlight = errors.New("该请假申请正在处理中")
	// ErrModalClosed 驳回对话框未打开
	ErrModalClosed = errors.New("驳回对话框未打开")
	// ErrEmptyComment 驳回理由为空
	ErrEmptyComment = errors.New("驳回理由不能为空")
)

// ModalState 驳回对话框状态；Open=false 时其余字段无意义
type ModalState struct {
	Open     bool
	TargetID int64
	Comment  string
}

// ActionState 审批动作状态快照
type ActionState struct {
	Modal    ModalState
	InFlight []int64
	Err      error
}

// ActionFlow 审批动作：通过直接提交，驳回需先填写理由
type ActionFlow struct {
	gw     Caller
	queue  *PendingQueue
	logger *zap.Logger

	mu       sync.Mutex
	modal    ModalState
	inFlight map[int64]bool
	err      error
	onChange func(ActionState)
}

// NewActionFlow 创建审批动作流程；queue 可为 nil
func NewActionFlow(gw Caller, queue *PendingQueue, logger *zap.Logger) *ActionFlow {
	return &ActionFlow{
		gw:       gw,
		queue:    queue,
		logger:   logger,
		inFlight: make(map[int64]bool),
	}
}

// OnChange 注册状态变化回调
func (f *ActionFlow) OnChange(fn func(ActionState)) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// State 返回当前状态快照
func (f *ActionFlow) State() ActionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *ActionFlow) stateLocked() ActionState {
	ids := make([]int64, 0, len(f.inFlight))
	for id := range f.inFlight {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ActionState{Modal: f.modal, InFlight: ids, Err: f.err}
}

// Modal 返回驳回对话框状态
func (f *ActionFlow) Modal() ModalState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modal
}

// Err 最近一次审批动作的错误
func (f *ActionFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// InFlight 指定请求是否有审批动作在途
func (f *ActionFlow) InFlight(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight[id]
}

// Approve 通过请假申请（无需填写意见）
func (f *ActionFlow) Approve(ctx context.Context, id int64) (*dto.LeaveRequest, error) {
	return f.act(ctx, id, "approve", "")
}

// OpenReject 打开驳回对话框，理由草稿为空
func (f *ActionFlow) OpenReject(id int64) {
	f.mu.Lock()
	f.modal = ModalState{Open: true, TargetID: id}
	snap, cb := f.stateLocked(), f.onChange
	f.mu.Unlock()
	notify(cb, snap)
}

// SetComment 更新驳回理由草稿；对话框未打开时忽略
func (f *ActionFlow) SetComment(comment string) {
	f.mu.Lock()
	if !f.modal.Open {
		f.mu.Unlock()
		return
	}
	f.modal.Comment = comment
	snap, cb := f.stateLocked(), f.onChange
	f.mu.Unlock()
	notify(cb, snap)
}

// CanConfirm 确认按钮是否可用：对话框已打开且理由去除空白后非空
func (f *ActionFlow) CanConfirm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modal.Open && strings.TrimSpace(f.modal.Comment) != ""
}

// ConfirmReject 提交驳回
// 成功：移除队列条目并关闭对话框；失败：记录错误，对话框与草稿保持不变
func (f *ActionFlow) ConfirmReject(ctx context.Context) (*dto.LeaveRequest, error) {
	f.mu.Lock()
	if !f.modal.Open {
		f.mu.Unlock()
		return nil, ErrModalClosed
	}
	if strings.TrimSpace(f.modal.Comment) == "" {
		f.mu.Unlock()
		return nil, ErrEmptyComment
	}
	id, comment := f.modal.TargetID, f.modal.Comment
	f.mu.Unlock()

	leave, err := f.act(ctx, id, "reject", comment)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.modal.Open && f.modal.TargetID == id {
		f.modal = ModalState{}
	}
	snap, cb := f.stateLocked(), f.onChange
	f.mu.Unlock()
	notify(cb, snap)
	return leave, nil
}

// Cancel 关闭驳回对话框，不发请求
func (f *ActionFlow) Cancel() {
	f.mu.Lock()
	if !f.modal.Open {
		f.mu.Unlock()
		return
	}
	f.modal = ModalState{}
	snap, cb := f.stateLocked(), f.onChange
	f.mu.Unlock()
	notify(cb, snap)
}

func (f *ActionFlow) act(ctx context.Context, id int64, verb, comment string) (*dto.LeaveRequest, error) {
	f.mu.Lock()
	if f.inFlight[id] {
		f.mu.Unlock()
		return nil, ErrActionInFlight
	}
	f.inFlight[id] = true
	snap, cb := f.stateLocked(), f.onChange
	f.mu.Unlock()
	notify(cb, snap)

	var leave dto.LeaveRequest
	path := fmt.Sprintf("/leaves/%d/%s", id, verb)
	err := f.gw.Call(ctx, http.MethodPut, path, &dto.LeaveActionRequest{Comment: comment}, &leave)

	f.mu.Lock()
	delete(f.inFlight, id)
	f.err = err
	snap, cb = f.stateLocked(), f.onChange
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("审批动作失败", zap.Int64("leave_id", id), zap.String("action", verb), zap.Error(err))
		notify(cb, snap)
		return nil, err
	}

	f.logger.Info("审批动作成功", zap.Int64("leave_id", id), zap.String("action", verb), zap.String("status", leave.Status))
	if f.queue != nil {
		f.queue.Remove(id)
	}
	notify(cb, snap)
	return &leave, nil
}
