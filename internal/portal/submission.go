package portal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"salm/portal/internal/dto"
)

// ErrSubmitInFlight 上一次提交尚未完成（提交按钮处于禁用状态）
var ErrSubmitInFlight = errors.New("请假申请正在提交中")

// SubmissionState 提交流程状态快照
type SubmissionState struct {
	Submitting bool
	Result     *dto.LeaveRequest
	Err        error
}

// SubmissionFlow 请假申请提交流程
// 不重试、不去重；仅在提交期间拒绝新的提交
type SubmissionFlow struct {
	gw         Caller
	projection *ProjectionEngine
	logger     *zap.Logger

	mu       sync.Mutex
	state    SubmissionState
	onChange func(SubmissionState)
}

// NewSubmissionFlow 创建提交流程；projection 可为 nil
func NewSubmissionFlow(gw Caller, projection *ProjectionEngine, logger *zap.Logger) *SubmissionFlow {
	return &SubmissionFlow{gw: gw, projection: projection, logger: logger}
}

// OnChange 注册状态变化回调
func (f *SubmissionFlow) OnChange(fn func(SubmissionState)) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// State 返回当前状态快照
func (f *SubmissionFlow) State() SubmissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit 提交请假申请
// 成功：替换展示结果并丢弃预估；失败：展示错误，保留之前的结果与预估
func (f *SubmissionFlow) Submit(ctx context.Context, startDate, endDate, reason string) (*dto.LeaveRequest, error) {
	req := &dto.ApplyLeaveRequest{StartDate: startDate, EndDate: endDate, Reason: reason}

	f.mu.Lock()
	if f.state.Submitting {
		f.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if err := validateStruct(req); err != nil {
		f.state.Err = err
		snap, cb := f.state, f.onChange
		f.mu.Unlock()
		notify(cb, snap)
		return nil, err
	}
	f.state.Submitting = true
	f.state.Err = nil
	snap, cb := f.state, f.onChange
	f.mu.Unlock()
	notify(cb, snap)

	var leave dto.LeaveRequest
	if err := f.gw.Call(ctx, http.MethodPost, "/leaves/", req, &leave); err != nil {
		f.logger.Warn("提交请假申请失败", zap.Error(err))
		f.finish(nil, err)
		return nil, err
	}

	f.logger.Info("请假申请已提交",
		zap.Int64("leave_id", leave.ID),
		zap.String("status", leave.Status),
		zap.String("auto_type", leave.AutoType),
	)
	f.finish(&leave, nil)
	if f.projection != nil {
		f.projection.Discard()
	}
	return &leave, nil
}

func (f *SubmissionFlow) finish(result *dto.LeaveRequest, err error) {
	f.mu.Lock()
	f.state.Submitting = false
	f.state.Err = err
	if result != nil {
		f.state.Result = result
	}
	snap, cb := f.state, f.onChange
	f.mu.Unlock()
	notify(cb, snap)
}
