package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salm/portal/config"
	apperrors "salm/portal/pkg/errors"
)

// ── 远程访问网关 ──────────────────────────────────────────────
//
// 所有网络调用的唯一出口：
//   - 有 Token 时附加 Authorization: Bearer <token>，无 Token 不视为错误
//   - 401 一律触发跳转登录（包括后台轮询），再返回 ErrUnauthorized
//   - 其他非 2xx 返回 APIError，消息为服务端原文；HTML 错误页改用状态行
//   - 2xx 直接按调用方声明的类型解码，不做结构校验
// ─────────────────────────────────────────────────────────────

// LoginPath 认证失效后跳转的登录入口
const LoginPath = "/login"

const (
	htmlErrorPrefix   = "<!DOCTYPE"
	defaultErrMessage = "API Request Failed"
	maxErrorBodySize  = 64 * 1024
)

// TokenSource 提供当前 Bearer Token（由会话注入）
type TokenSource interface {
	Token() string
}

// Navigator 执行跳转登录的副作用
type Navigator interface {
	RedirectToLogin(ctx context.Context, path string)
}

// NavigatorFunc 函数适配器
type NavigatorFunc func(ctx context.Context, path string)

// RedirectToLogin 实现 Navigator
func (f NavigatorFunc) RedirectToLogin(ctx context.Context, path string) { f(ctx, path) }

// Client 远程 API 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	navigator  Navigator
	logger     *zap.Logger
}

// NewClient 创建网关客户端
// tokens / navigator 可为 nil：nil tokens 表示匿名调用，nil navigator 表示仅返回错误不跳转
func NewClient(cfg *config.APIConfig, tokens TokenSource, navigator Navigator, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		navigator:  navigator,
		logger:     logger,
	}
}

// Get 发起 GET 请求
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Call(ctx, http.MethodGet, path, nil, out)
}

// Post 发起 POST 请求
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Call(ctx, http.MethodPost, path, body, out)
}

// Put 发起 PUT 请求
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Call(ctx, http.MethodPut, path, body, out)
}

// Call 发起一次 JSON 请求
// body 为 nil 时不发送请求体；out 为 nil 时丢弃响应体
func (c *Client) Call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("API 请求失败",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return fmt.Errorf("请求 %s %s 失败: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("API 请求完成",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized && c.navigator != nil {
		c.navigator.RedirectToLogin(ctx, LoginPath)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败 %s %s: %w", method, path, err)
	}
	return nil
}

// errorFromResponse 将非成功响应转为 APIError
func (c *Client) errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	text := string(raw)

	// HTML 错误页（网关/代理故障常见）不适合展示
	if strings.HasPrefix(text, htmlErrorPrefix) {
		return &apperrors.APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("API Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	msg := text
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if msg == "" {
		msg = defaultErrMessage
	}
	return &apperrors.APIError{StatusCode: resp.StatusCode, Message: msg}
}
