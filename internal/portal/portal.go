package portal

import (
	"context"

	"go.uber.org/zap"

	"salm/portal/config"
	"salm/portal/internal/dto"
	"salm/portal/internal/session"
)

// Caller 远程调用接口（gateway.Client 实现）
type Caller interface {
	Call(ctx context.Context, method, path string, body, out interface{}) error
}

// Portal 客户端各流程的聚合入口
// 每个视图实例（申请表单、待审批队列……）通过对应的 New 方法单独创建
type Portal struct {
	cfg     *config.Config
	gw      Caller
	session *session.Session
	logger  *zap.Logger

	Auth *AuthFlow
}

// New 创建 Portal 聚合
func New(cfg *config.Config, gw Caller, sess *session.Session, logger *zap.Logger) *Portal {
	return &Portal{
		cfg:     cfg,
		gw:      gw,
		session: sess,
		logger:  logger,
		Auth:    NewAuthFlow(gw, sess, logger),
	}
}

// NewApplyForm 创建申请表单：出勤预估 + 提交流程
func (p *Portal) NewApplyForm() (*ProjectionEngine, *SubmissionFlow) {
	projection := NewProjectionEngine(p.gw, p.cfg.Projection.Debounce, p.logger)
	return projection, NewSubmissionFlow(p.gw, projection, p.logger)
}

// NewReviewDesk 创建审批台：待审批队列 + 审批动作
func (p *Portal) NewReviewDesk() (*PendingQueue, *ActionFlow) {
	queue := NewPendingQueue(p.gw, p.cfg.Queue.PollInterval, p.cfg.Queue.SerializePolls, p.logger)
	return queue, NewActionFlow(p.gw, queue, p.logger)
}

// NewDecisionFlow 创建不关联队列的审批动作，用于单次审批
func (p *Portal) NewDecisionFlow() *ActionFlow {
	return NewActionFlow(p.gw, nil, p.logger)
}

// NewHistoryView 创建“我的请假”视图
func (p *Portal) NewHistoryView() *ReadView[dto.LeaveRequest] {
	return NewHistoryView(p.gw, p.logger)
}

// NewCalendarView 创建请假日历视图
func (p *Portal) NewCalendarView() *ReadView[dto.CalendarEntry] {
	return NewCalendarView(p.gw, p.logger)
}
