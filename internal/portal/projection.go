package portal

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"salm/portal/internal/dto"
)

// ── 出勤影响预估 ──────────────────────────────────────────────
//
// 日期区间每变化一次就取消上一个防抖定时器并重新计时；定时器触发后
// 请求 /leaves/summary。网络请求不会被中途取消，但只有最近一次计时
// 产生的结果会被应用（generation 校验），即“最后计时者胜”，
// 与响应到达顺序无关。
//
// 预估失败只记日志，不影响提交。
// ─────────────────────────────────────────────────────────────

// DefaultProjectionDebounce 默认防抖时长
const DefaultProjectionDebounce = 500 * time.Millisecond

// ProjectionState 预估视图状态快照
type ProjectionState struct {
	Loading    bool
	Days       int // 最近一次发出请求的天数
	Projection *dto.AttendanceProjection
}

// ProjectionEngine 出勤预估引擎
type ProjectionEngine struct {
	gw       Caller
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	closed   bool
	state    ProjectionState
	onChange func(ProjectionState)
}

// NewProjectionEngine 创建预估引擎；debounce<=0 时使用默认值
func NewProjectionEngine(gw Caller, debounce time.Duration, logger *zap.Logger) *ProjectionEngine {
	if debounce <= 0 {
		debounce = DefaultProjectionDebounce
	}
	return &ProjectionEngine{gw: gw, debounce: debounce, logger: logger}
}

// InclusiveDays 计算包含首尾的请假天数：ceil(|end-start| 天) + 1
// 任一日期无法解析时 ok=false
func InclusiveDays(start, end string) (int, bool) {
	s, err := time.Parse(dto.DateLayout, start)
	if err != nil {
		return 0, false
	}
	e, err := time.Parse(dto.DateLayout, end)
	if err != nil {
		return 0, false
	}
	diff := e.Sub(s)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours()/24)) + 1, true
}

// OnChange 注册状态变化回调（在锁外调用）
func (e *ProjectionEngine) OnChange(fn func(ProjectionState)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// State 返回当前状态快照
func (e *ProjectionEngine) State() ProjectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetRange 候选日期区间变化
//   - 任一日期为空：清空预估
//   - 日期无法解析或天数非正：不做任何事，保留上一次预估
//   - 否则重新开始防抖计时
func (e *ProjectionEngine) SetRange(start, end string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.supersedeLocked()

	if start == "" || end == "" {
		e.state = ProjectionState{}
		snap, cb := e.state, e.onChange
		e.mu.Unlock()
		notify(cb, snap)
		return
	}

	days, ok := InclusiveDays(start, end)
	if !ok || days <= 0 {
		e.mu.Unlock()
		return
	}

	gen := e.gen
	e.timer = time.AfterFunc(e.debounce, func() { e.fetch(gen, days) })
	e.mu.Unlock()
}

// Discard 丢弃当前预估（提交成功后余额已变化，预估失效）
func (e *ProjectionEngine) Discard() {
	e.mu.Lock()
	e.supersedeLocked()
	e.state.Projection = nil
	e.state.Days = 0
	snap, cb := e.state, e.onChange
	e.mu.Unlock()
	notify(cb, snap)
}

// Close 视图销毁：取消尚未触发的定时器，之后的结果一律丢弃
func (e *ProjectionEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.supersedeLocked()
	e.closed = true
}

// supersedeLocked 取消待触发的定时器，并使在途请求的结果失效
func (e *ProjectionEngine) supersedeLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	e.state.Loading = false
}

func (e *ProjectionEngine) fetch(gen uint64, days int) {
	e.mu.Lock()
	if gen != e.gen || e.closed {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.state.Loading = true
	e.state.Days = days
	snap, cb := e.state, e.onChange
	e.mu.Unlock()
	notify(cb, snap)

	var proj dto.AttendanceProjection
	path := fmt.Sprintf("/leaves/summary?requested_days=%d", days)
	err := e.gw.Call(context.Background(), http.MethodGet, path, nil, &proj)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		e.logger.Debug("预估结果已被新的日期区间取代，丢弃", zap.Int("days", days))
		return
	}
	e.state.Loading = false
	if err != nil {
		// 预估失败不提示用户，保留上一次预估
		e.logger.Warn("获取出勤预估失败", zap.Int("days", days), zap.Error(err))
	} else {
		e.state.Projection = &proj
	}
	snap, cb = e.state, e.onChange
	e.mu.Unlock()
	notify(cb, snap)
}

func notify[T any](cb func(T), v T) {
	if cb != nil {
		cb(v)
	}
}
