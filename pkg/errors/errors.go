package errors

import (
	"errors"
	"net/http"
)

// ErrUnauthorized 认证失效（HTTP 401）：只能重新登录，无法原地恢复
var ErrUnauthorized = errors.New("登录状态已失效，请重新登录")

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// APIError 远程 API 返回的非成功响应
// Message 为服务端原样返回的正文（或状态行），可直接展示给用户
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Is 让 401 响应可以通过 errors.Is(err, ErrUnauthorized) 识别
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// IsUnauthorized 判断错误是否为认证失效
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// AsAPIError 提取 APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Message 返回适合展示给用户的错误文本，fallback 用于空消息
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
