package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"salm/portal/config"
	apperrors "salm/portal/pkg/errors"
)

// ── 测试辅助 ──

type staticToken string

func (s staticToken) Token() string { return string(s) }

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) RedirectToLogin(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paths)
}

func newTestClient(t *testing.T, h http.HandlerFunc, token string, nav Navigator) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&config.APIConfig{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, staticToken(token), nav, zap.NewNop())
}

// ── 请求头 ──

func TestCall_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotRID, gotCT string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRID = r.Header.Get("X-Request-ID")
		gotCT = r.Header.Get("Content-Type")
		w.Write([]byte(`[]`))
	}, "tok-123", nil)

	var out []int
	if err := c.Get(context.Background(), "/leaves/me", &out); err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("期望 Authorization=Bearer tok-123，实际=%q", gotAuth)
	}
	if gotRID == "" {
		t.Error("X-Request-ID 不应为空")
	}
	if gotCT != "application/json" {
		t.Errorf("期望 Content-Type=application/json，实际=%q", gotCT)
	}
}

func TestCall_NoTokenIsNotAnError(t *testing.T) {
	var hasAuth bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.Write([]byte(`{}`))
	}, "", nil)

	if err := c.Get(context.Background(), "/leaves/me", nil); err != nil {
		t.Fatalf("无 Token 不应报错: %v", err)
	}
	if hasAuth {
		t.Error("无 Token 时不应发送 Authorization 头")
	}
}

func TestCall_SendsJSONBodyAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/leaves/" {
			t.Errorf("期望 POST /leaves/，实际 %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["reason"] != "fever" {
			t.Errorf("期望 reason=fever，实际=%q", body["reason"])
		}
		w.Write([]byte(`{"id": 7, "status": "PENDING"}`))
	}, "tok", nil)

	var out struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := c.Post(context.Background(), "/leaves/", map[string]string{"reason": "fever"}, &out); err != nil {
		t.Fatalf("Post 失败: %v", err)
	}
	if out.ID != 7 || out.Status != "PENDING" {
		t.Errorf("解码结果错误: %+v", out)
	}
}

// ── 错误归一化 ──

func TestCall_401RedirectsToLogin(t *testing.T) {
	nav := &recordingNavigator{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}, "expired", nav)

	// 任意操作（含后台轮询路径）都应跳转
	for _, path := range []string{"/leaves/pending", "/leaves/summary?requested_days=2", "/leaves/1/approve"} {
		err := c.Call(context.Background(), http.MethodGet, path, nil, nil)
		if !apperrors.IsUnauthorized(err) {
			t.Errorf("%s: 期望 ErrUnauthorized，实际: %v", path, err)
		}
	}
	if nav.count() != 3 {
		t.Fatalf("期望跳转 3 次，实际=%d", nav.count())
	}
	for _, p := range nav.paths {
		if p != "/login" {
			t.Errorf("期望跳转 /login，实际=%s", p)
		}
	}
}

func TestCall_ErrorBodyIsMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"End date cannot be before start date"}`))
	}, "tok", nil)

	err := c.Post(context.Background(), "/leaves/", map[string]string{}, nil)
	apiErr, ok := apperrors.AsAPIError(err)
	if !ok {
		t.Fatalf("期望 APIError，实际: %v", err)
	}
	if apiErr.StatusCode != 400 {
		t.Errorf("期望状态码 400，实际=%d", apiErr.StatusCode)
	}
	if apiErr.Message != `{"detail":"End date cannot be before start date"}` {
		t.Errorf("消息应为服务端原文，实际=%s", apiErr.Message)
	}
	if apperrors.IsUnauthorized(err) {
		t.Error("400 不应识别为认证失效")
	}
}

func TestCall_HTMLErrorPageUsesStatusLine(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<!DOCTYPE html><html><body>upstream down</body></html>"))
	}, "tok", nil)

	err := c.Get(context.Background(), "/leaves/pending", nil)
	if err == nil || err.Error() != "API Error: 502 Bad Gateway" {
		t.Errorf("期望 API Error: 502 Bad Gateway，实际: %v", err)
	}
}

func TestCall_EmptyBodyFallsBackToStatusText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, "tok", nil)

	err := c.Get(context.Background(), "/leaves/pending", nil)
	if err == nil || err.Error() != "Internal Server Error" {
		t.Errorf("期望 Internal Server Error，实际: %v", err)
	}
}

func TestCall_UnknownStatusWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(599)
	}, "tok", nil)

	err := c.Get(context.Background(), "/leaves/pending", nil)
	if err == nil || err.Error() != "API Request Failed" {
		t.Errorf("期望 API Request Failed，实际: %v", err)
	}
}

func TestCall_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(&config.APIConfig{BaseURL: url, Timeout: time.Second}, nil, nil, zap.NewNop())
	err := c.Get(context.Background(), "/leaves/me", nil)
	if err == nil {
		t.Fatal("服务不可达应返回错误")
	}
	if _, ok := apperrors.AsAPIError(err); ok {
		t.Error("网络错误不应是 APIError")
	}
}

func TestCall_NilOutDiscardsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`not even json`))
	}, "tok", nil)

	if err := c.Put(context.Background(), "/leaves/1/approve", map[string]string{"comment": ""}, nil); err != nil {
		t.Errorf("out 为 nil 时不应解析响应: %v", err)
	}
}

func TestCall_InvalidJSONResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}, "tok", nil)

	var out map[string]interface{}
	err := c.Get(context.Background(), "/leaves/me", &out)
	if err == nil {
		t.Fatal("非 JSON 响应应返回错误")
	}
	if errors.Is(err, apperrors.ErrUnauthorized) {
		t.Error("解析错误不应识别为认证失效")
	}
}

func TestNavigatorFunc(t *testing.T) {
	var got string
	var nav Navigator = NavigatorFunc(func(_ context.Context, path string) { got = path })
	nav.RedirectToLogin(context.Background(), LoginPath)
	if got != "/login" {
		t.Errorf("期望 /login，实际=%s", got)
	}
}
