package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"salm/portal/internal/dto"
)

// ── 进程级会话上下文 ──────────────────────────────────────────
//
// 保存 Bearer Token 与用户身份：
//   - Begin: 登录成功时写入（内存 + 持久化存储）
//   - End:   登出时清除
//   - Token: 网关每次调用时读取，只读不写
// ─────────────────────────────────────────────────────────────

var (
	ErrNoSession    = errors.New("当前未登录")
	ErrEmptyToken   = errors.New("登录响应缺少 access_token")
	ErrCorruptStore = errors.New("本地会话数据已损坏")
)

// Record 持久化的会话记录
type Record struct {
	AccessToken string          `json:"access_token"`
	User        dto.SessionUser `json:"user"`
}

// Store 会话持久化接口
type Store interface {
	// Load 读取会话；不存在时返回 (nil, nil)
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Clear(ctx context.Context) error
}

// Session 进程级会话
type Session struct {
	mu     sync.RWMutex
	rec    *Record
	store  Store
	logger *zap.Logger
}

// New 创建会话上下文
func New(store Store, logger *zap.Logger) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{store: store, logger: logger}
}

// Restore 从存储恢复上一次登录的会话
// 存储损坏时清理并视为未登录
func (s *Session) Restore(ctx context.Context) error {
	rec, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptStore) {
			s.logger.Warn("本地会话损坏，已清除", zap.Error(err))
			return s.store.Clear(ctx)
		}
		return fmt.Errorf("恢复会话失败: %w", err)
	}

	s.mu.Lock()
	s.rec = rec
	s.mu.Unlock()
	return nil
}

// Begin 登录成功：写入 Token 与用户身份
func (s *Session) Begin(ctx context.Context, resp *dto.LoginResponse) error {
	if resp == nil || resp.AccessToken == "" {
		return ErrEmptyToken
	}
	rec := &Record{AccessToken: resp.AccessToken, User: resp.User()}
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("保存会话失败: %w", err)
	}

	s.mu.Lock()
	s.rec = rec
	s.mu.Unlock()

	s.logger.Info("会话已建立",
		zap.Int64("user_id", rec.User.ID),
		zap.String("role", rec.User.Role),
	)
	return nil
}

// End 登出：清除内存与存储中的会话
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	s.rec = nil
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("清除会话失败: %w", err)
	}
	s.logger.Info("会话已结束")
	return nil
}

// Token 当前 Bearer Token，未登录时为空串
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return ""
	}
	return s.rec.AccessToken
}

// User 当前用户身份
func (s *Session) User() (dto.SessionUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return dto.SessionUser{}, false
	}
	return s.rec.User, true
}

// RequireRole 校验当前用户角色（客户端仅用于引导，真正的鉴权在服务端）
func (s *Session) RequireRole(role string) (dto.SessionUser, error) {
	u, ok := s.User()
	if !ok {
		return dto.SessionUser{}, ErrNoSession
	}
	if u.Role != role {
		return u, fmt.Errorf("当前角色为 %s，该操作需要 %s", u.Role, role)
	}
	return u, nil
}
