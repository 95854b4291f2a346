package portal

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"salm/portal/internal/dto"
	"salm/portal/internal/session"
)

// AuthFlow 登录 / 登出流程
type AuthFlow struct {
	gw      Caller
	session *session.Session
	logger  *zap.Logger
}

// NewAuthFlow 创建 AuthFlow
func NewAuthFlow(gw Caller, sess *session.Session, logger *zap.Logger) *AuthFlow {
	return &AuthFlow{gw: gw, session: sess, logger: logger}
}

// Login 登录并建立会话
func (a *AuthFlow) Login(ctx context.Context, email, password, role string) (*dto.LoginResponse, error) {
	req := &dto.LoginRequest{Email: email, Password: password, Role: role}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var resp dto.LoginResponse
	if err := a.gw.Call(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		a.logger.Warn("登录失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if err := a.session.Begin(ctx, &resp); err != nil {
		return nil, fmt.Errorf("建立会话失败: %w", err)
	}
	return &resp, nil
}

// Logout 清除本地会话（服务端无登出接口）
func (a *AuthFlow) Logout(ctx context.Context) error {
	return a.session.End(ctx)
}

// LandingPath 登录后按角色进入的首页
func LandingPath(role string) string {
	switch role {
	case dto.RoleStudent:
		return "/student/apply-leave"
	case dto.RoleFaculty:
		return "/faculty/requests"
	default:
		return "/"
	}
}
