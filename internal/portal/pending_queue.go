package portal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"salm/portal/internal/dto"
)

// ── 待审批队列同步 ────────────────────────────────────────────
//
// 状态机：Idle → Loading → Loaded | Error，Loaded/Error 可在轮询或手动刷新时
// 重新进入 Loading。
//
// 轮询策略：
//   - 默认按固定间隔触发，不等待上一次拉取完成；多个拉取可能重叠，
//     展示的队列始终是“最近完成”的那次结果，而不是最近发起的那次
//   - serializePolls=true 时改为“上一次完成后再计时”
//
// 乐观移除：审批成功后立即从本地队列移除，并记录移除时已发起的拉取序号；
// 在移除之前发起、之后才返回的拉取结果会过滤掉该 ID，避免被轮询“复活”。
// 只有当移除前发起的拉取全部结束，且移除后发起的拉取已不含该 ID 时，才清除标记。
// ─────────────────────────────────────────────────────────────

// DefaultPollInterval 默认轮询间隔
const DefaultPollInterval = 30 * time.Second

// ErrQueueClosed 队列视图已销毁
var ErrQueueClosed = errors.New("待审批队列已停止")

// QueueStatus 队列加载状态
type QueueStatus int

const (
	QueueIdle QueueStatus = iota
	QueueLoading
	QueueLoaded
	QueueError
)

func (s QueueStatus) String() string {
	switch s {
	case QueueIdle:
		return "idle"
	case QueueLoading:
		return "loading"
	case QueueLoaded:
		return "loaded"
	case QueueError:
		return "error"
	default:
		return "unknown"
	}
}

// QueueState 队列状态快照
type QueueState struct {
	Status   QueueStatus
	Spinner  bool // 全屏加载指示：仅当加载开始时队列为空
	Items    []dto.PendingLeave
	Err      error
	InFlight int // 在途拉取数
}

// PendingQueue 待审批队列同步器
type PendingQueue struct {
	gw        Caller
	interval  time.Duration
	serialize bool
	logger    *zap.Logger

	mu       sync.Mutex
	items    []dto.PendingLeave
	status   QueueStatus
	spinner  bool
	err      error
	inFlight int
	seq      uint64              // 已发起的拉取次数
	loading  map[uint64]struct{} // 在途拉取的 seq
	removed  map[int64]*removal  // 本地已处理的 ID
	running  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
	onChange func(QueueState)
}

// removal 乐观移除标记
type removal struct {
	at     uint64 // 移除时已发起的最大 seq
	synced bool   // 移除后发起的某次拉取已不含该 ID
}

// NewPendingQueue 创建待审批队列；interval<=0 时使用默认值
func NewPendingQueue(gw Caller, interval time.Duration, serializePolls bool, logger *zap.Logger) *PendingQueue {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PendingQueue{
		gw:        gw,
		interval:  interval,
		serialize: serializePolls,
		logger:    logger,
		loading:   make(map[uint64]struct{}),
		removed:   make(map[int64]*removal),
	}
}

// OnChange 注册状态变化回调
func (q *PendingQueue) OnChange(fn func(QueueState)) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Snapshot 返回当前状态快照（Items 为副本）
func (q *PendingQueue) Snapshot() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *PendingQueue) snapshotLocked() QueueState {
	items := make([]dto.PendingLeave, len(q.items))
	copy(items, q.items)
	return QueueState{
		Status:   q.status,
		Spinner:  q.spinner,
		Items:    items,
		Err:      q.err,
		InFlight: q.inFlight,
	}
}

// Load 拉取一次待审批列表
// 失败时保留上一次成功加载的队列，并记录错误
func (q *PendingQueue) Load(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.seq++
	seq := q.seq
	q.inFlight++
	q.loading[seq] = struct{}{}
	q.status = QueueLoading
	if len(q.items) == 0 {
		q.spinner = true
	}
	q.err = nil
	snap, cb := q.snapshotLocked(), q.onChange
	q.mu.Unlock()
	notify(cb, snap)

	var items []dto.PendingLeave
	err := q.gw.Call(ctx, http.MethodGet, "/leaves/pending", nil, &items)

	q.mu.Lock()
	q.inFlight--
	delete(q.loading, seq)
	if q.closed {
		q.mu.Unlock()
		return err
	}
	if err != nil {
		q.err = err
	} else {
		q.items = q.filterRemovedLocked(items, seq)
		q.err = nil
	}
	q.pruneRemovedLocked()
	// 仍有拉取在途时保持 Loading；队列已有数据则不再需要全屏加载
	if q.inFlight == 0 {
		q.spinner = false
		if q.err != nil {
			q.status = QueueError
		} else {
			q.status = QueueLoaded
		}
	} else if len(q.items) > 0 {
		q.spinner = false
	}
	snap, cb = q.snapshotLocked(), q.onChange
	q.mu.Unlock()
	notify(cb, snap)

	if err != nil {
		q.logger.Warn("拉取待审批列表失败", zap.Uint64("seq", seq), zap.Error(err))
	}
	return err
}

// Refresh 手动刷新，任何时候可用
func (q *PendingQueue) Refresh(ctx context.Context) error {
	return q.Load(ctx)
}

// Remove 乐观移除已处理的请求；不在队列中时为无操作，返回 false
func (q *PendingQueue) Remove(id int64) bool {
	q.mu.Lock()
	q.removed[id] = &removal{at: q.seq}

	found := false
	next := make([]dto.PendingLeave, 0, len(q.items))
	for _, it := range q.items {
		if it.ID == id {
			found = true
			continue
		}
		next = append(next, it)
	}
	q.items = next
	snap, cb := q.snapshotLocked(), q.onChange
	q.mu.Unlock()

	if found {
		notify(cb, snap)
	}
	return found
}

// filterRemovedLocked 过滤本地已处理的 ID
// 移除之后发起的拉取已不含该 ID 时，记为已同步
func (q *PendingQueue) filterRemovedLocked(items []dto.PendingLeave, seq uint64) []dto.PendingLeave {
	if len(q.removed) == 0 {
		return items
	}

	seen := make(map[int64]bool)
	out := make([]dto.PendingLeave, 0, len(items))
	for _, it := range items {
		if _, gone := q.removed[it.ID]; gone {
			seen[it.ID] = true
			continue
		}
		out = append(out, it)
	}
	for id, r := range q.removed {
		if seq > r.at && !seen[id] {
			r.synced = true
		}
	}
	return out
}

// pruneRemovedLocked 清除已同步且移除前发起的拉取均已结束的标记
func (q *PendingQueue) pruneRemovedLocked() {
	oldest, busy := q.oldestLoadingLocked()
	for id, r := range q.removed {
		if !r.synced || (busy && oldest <= r.at) {
			continue
		}
		delete(q.removed, id)
	}
}

// oldestLoadingLocked 返回最早发起且仍在途的拉取序号
func (q *PendingQueue) oldestLoadingLocked() (uint64, bool) {
	var oldest uint64
	busy := false
	for seq := range q.loading {
		if !busy || seq < oldest {
			oldest, busy = seq, true
		}
	}
	return oldest, busy
}

// Start 首次加载并开始轮询；重复调用无效
func (q *PendingQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running || q.closed {
		q.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	q.running = true
	q.cancel = cancel
	q.done = make(chan struct{})
	done := q.done
	q.mu.Unlock()

	go q.run(loopCtx, done)
}

// Stop 停止轮询（视图销毁）
// 不中断在途请求，但其结果不再应用；返回时轮询循环已退出
func (q *PendingQueue) Stop() {
	q.mu.Lock()
	q.closed = true
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	cancel, done := q.cancel, q.done
	q.mu.Unlock()

	cancel()
	<-done
}

func (q *PendingQueue) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	// 在途请求不随视图销毁而中断
	callCtx := context.WithoutCancel(ctx)

	if q.serialize {
		q.pollAndWait(ctx, callCtx)
		timer := time.NewTimer(q.interval)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			q.pollAndWait(ctx, callCtx)
			timer.Reset(q.interval)
		}
	}

	go q.Load(callCtx)
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 按墙上时钟触发，不等待上一次拉取
			go q.Load(callCtx)
		}
	}
}

// pollAndWait 串行模式：等待本次拉取完成或视图销毁
func (q *PendingQueue) pollAndWait(loopCtx, callCtx context.Context) {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = q.Load(callCtx)
	}()
	select {
	case <-finished:
	case <-loopCtx.Done():
	}
}
