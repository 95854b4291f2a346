package portal

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"

	"salm/portal/internal/dto"
)

// ViewState 只读视图状态快照
type ViewState[T any] struct {
	Loading bool
	Loaded  bool
	Items   []T
	Err     error
}

// ReadView 只读列表视图（我的请假、请假日历）：加载一次，不轮询，不修改
type ReadView[T any] struct {
	gw     Caller
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	state    ViewState[T]
	onChange func(ViewState[T])
}

// NewHistoryView 当前学生的请假记录
func NewHistoryView(gw Caller, logger *zap.Logger) *ReadView[dto.LeaveRequest] {
	return &ReadView[dto.LeaveRequest]{gw: gw, path: "/leaves/me", logger: logger}
}

// NewCalendarView 本班已通过的请假
func NewCalendarView(gw Caller, logger *zap.Logger) *ReadView[dto.CalendarEntry] {
	return &ReadView[dto.CalendarEntry]{gw: gw, path: "/leaves/calendar", logger: logger}
}

// OnChange 注册状态变化回调
func (v *ReadView[T]) OnChange(fn func(ViewState[T])) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// State 返回当前状态快照
func (v *ReadView[T]) State() ViewState[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Load 拉取列表；失败时保留已加载的数据
func (v *ReadView[T]) Load(ctx context.Context) ([]T, error) {
	v.mu.Lock()
	v.state.Loading = true
	v.state.Err = nil
	snap, cb := v.state, v.onChange
	v.mu.Unlock()
	notify(cb, snap)

	var items []T
	err := v.gw.Call(ctx, http.MethodGet, v.path, nil, &items)

	v.mu.Lock()
	v.state.Loading = false
	if err != nil {
		v.state.Err = err
	} else {
		if items == nil {
			items = []T{}
		}
		v.state.Items = items
		v.state.Loaded = true
	}
	snap, cb = v.state, v.onChange
	v.mu.Unlock()
	notify(cb, snap)

	if err != nil {
		v.logger.Warn("加载列表失败", zap.String("path", v.path), zap.Error(err))
		return nil, err
	}
	return items, nil
}

// Bucket 分组结果
type Bucket[T any] struct {
	Key   string
	Items []T
}

// GroupByDate 按 key 分组，组按 key 升序（ISO 日期字符串按字典序即时间序），
// 组内保持原有顺序
func GroupByDate[T any](items []T, key func(T) string) []Bucket[T] {
	index := make(map[string]int)
	var buckets []Bucket[T]
	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, Bucket[T]{Key: k})
		}
		buckets[i].Items = append(buckets[i].Items, it)
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets
}

var statusOrder = map[string]int{
	dto.StatusPending:  0,
	dto.StatusApproved: 1,
	dto.StatusRejected: 2,
}

// GroupByStatus 按状态分组：待审批、已通过、已驳回，其他状态排在最后
func GroupByStatus(items []dto.LeaveRequest) []Bucket[dto.LeaveRequest] {
	buckets := GroupByDate(items, func(l dto.LeaveRequest) string { return l.Status })
	sort.SliceStable(buckets, func(i, j int) bool {
		ri, iKnown := statusOrder[buckets[i].Key]
		rj, jKnown := statusOrder[buckets[j].Key]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return buckets[i].Key < buckets[j].Key
		}
	})
	return buckets
}
