package portal

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ── 测试辅助 ──

type recordedCall struct {
	method string
	path   string
	body   interface{}
}

// fakeCaller 可编程的远程调用替身：handle 返回的值经 JSON 编解码后写入 out
type fakeCaller struct {
	mu     sync.Mutex
	calls  []recordedCall
	handle func(method, path string, body interface{}) (interface{}, error)

	active    int32
	maxActive int32
}

func newFakeCaller(h func(method, path string, body interface{}) (interface{}, error)) *fakeCaller {
	return &fakeCaller{handle: h}
}

func (f *fakeCaller) Call(_ context.Context, method, path string, body, out interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{method: method, path: path, body: body})
	h := f.handle
	f.mu.Unlock()

	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		m := atomic.LoadInt32(&f.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxActive, m, n) {
			break
		}
	}

	resp, err := h(method, path, body)
	if err != nil {
		return err
	}
	if out == nil || resp == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeCaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCaller) last() recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return recordedCall{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeCaller) peak() int {
	return int(atomic.LoadInt32(&f.maxActive))
}

// eventually 在超时前反复检查条件
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待超时: %s", msg)
}

func strPtr(s string) *string { return &s }
