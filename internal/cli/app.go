package cli

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"salm/portal/config"
	"salm/portal/internal/gateway"
	"salm/portal/internal/portal"
	"salm/portal/internal/session"
	"salm/portal/pkg/redis"
)

// ReloginHint 认证失效时给出的提示（CLI 中的“跳转登录”）
const ReloginHint = "登录状态已失效，请执行 leavectl login 重新登录"

// App 一次命令执行所需的依赖
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *session.Session
	portal  *portal.Portal
	rdb     *redis.Client

	out    io.Writer
	errOut io.Writer
}

// NewApp 按配置组装会话存储、网关与 Portal，并恢复上一次的会话
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, out, errOut io.Writer) (*App, error) {
	a := &App{cfg: cfg, logger: logger, out: out, errOut: errOut}

	store, err := a.newStore()
	if err != nil {
		return nil, err
	}
	a.session = session.New(store, logger)
	if err := a.session.Restore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	gw := gateway.NewClient(&cfg.API, a.session, gateway.NavigatorFunc(a.redirectToLogin), logger)
	a.portal = portal.New(cfg, gw, a.session, logger)
	return a, nil
}

func (a *App) newStore() (session.Store, error) {
	switch a.cfg.Session.Store {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		rdb, err := redis.NewClient(&a.cfg.Redis, a.logger)
		if err != nil {
			return nil, fmt.Errorf("会话存储不可用: %w", err)
		}
		a.rdb = rdb
		return session.NewRedisStore(rdb, a.cfg.Session.Key, a.cfg.Session.TTL), nil
	default:
		return session.NewFileStore(a.cfg.Session.Path), nil
	}
}

// redirectToLogin 401 时提示重新登录；同一次执行中可能被后台轮询重复触发
func (a *App) redirectToLogin(_ context.Context, path string) {
	a.logger.Debug("认证失效", zap.String("redirect", path))
	fmt.Fprintln(a.errOut, ReloginHint)
}

// Close 释放外部连接
func (a *App) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
