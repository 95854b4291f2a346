package portal

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"salm/portal/config"
	"salm/portal/internal/dto"
	"salm/portal/internal/session"
	apperrors "salm/portal/pkg/errors"
)

func TestAuthFlow_LoginAndLogout(t *testing.T) {
	gw := newFakeCaller(func(method, path string, body interface{}) (interface{}, error) {
		if method != http.MethodPost || path != "/auth/login" {
			t.Errorf("期望 POST /auth/login，实际 %s %s", method, path)
		}
		req := body.(*dto.LoginRequest)
		return &dto.LoginResponse{
			ID:          7,
			Name:        "Dr. Rao",
			Role:        req.Role,
			ClassName:   strPtr("CSE-A"),
			AccessToken: "tok-123",
			TokenType:   "bearer",
		}, nil
	})
	sess := session.New(nil, zap.NewNop())
	auth := NewAuthFlow(gw, sess, zap.NewNop())

	resp, err := auth.Login(context.Background(), "rao@college.edu", "secret", dto.RoleFaculty)
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if sess.Token() != "tok-123" {
		t.Errorf("登录后应保存 Token，实际 %q", sess.Token())
	}
	if u, ok := sess.User(); !ok || u.Role != dto.RoleFaculty || u.ID != 7 {
		t.Errorf("会话用户不符: %+v", u)
	}
	if LandingPath(resp.Role) != "/faculty/requests" {
		t.Errorf("教师首页不符: %s", LandingPath(resp.Role))
	}

	if err := auth.Logout(context.Background()); err != nil {
		t.Fatalf("登出失败: %v", err)
	}
	if sess.Token() != "" {
		t.Error("登出后 Token 应清空")
	}
}

func TestAuthFlow_InvalidForm(t *testing.T) {
	gw := newFakeCaller(nil)
	auth := NewAuthFlow(gw, session.New(nil, zap.NewNop()), zap.NewNop())

	cases := []struct{ email, password, role string }{
		{"", "secret", dto.RoleStudent},
		{"not-an-email", "secret", dto.RoleStudent},
		{"a@b.edu", "", dto.RoleStudent},
		{"a@b.edu", "secret", "ADMIN"},
	}
	for _, c := range cases {
		if _, err := auth.Login(context.Background(), c.email, c.password, c.role); !errors.Is(err, ErrInvalidForm) {
			t.Errorf("%+v: 期望 ErrInvalidForm，实际 %v", c, err)
		}
	}
	if gw.count() != 0 {
		t.Errorf("校验失败不应发请求，实际 %d 次", gw.count())
	}
}

func TestAuthFlow_BadCredentialsKeepsSessionEmpty(t *testing.T) {
	gw := newFakeCaller(func(string, string, interface{}) (interface{}, error) {
		return nil, &apperrors.APIError{StatusCode: 401, Message: `{"detail":"Invalid email or password"}`}
	})
	sess := session.New(nil, zap.NewNop())
	auth := NewAuthFlow(gw, sess, zap.NewNop())

	_, err := auth.Login(context.Background(), "a@b.edu", "wrong", dto.RoleStudent)
	if !apperrors.IsUnauthorized(err) {
		t.Errorf("期望认证失败，实际 %v", err)
	}
	if sess.Token() != "" {
		t.Error("登录失败不应建立会话")
	}
}

func TestLandingPath(t *testing.T) {
	if LandingPath(dto.RoleStudent) != "/student/apply-leave" || LandingPath("X") != "/" {
		t.Error("LandingPath 不符")
	}
}

func TestPortal_Compose(t *testing.T) {
	cfg := &config.Config{}
	cfg.Queue.SerializePolls = true
	p := New(cfg, newFakeCaller(nil), session.New(nil, zap.NewNop()), zap.NewNop())

	projection, submit := p.NewApplyForm()
	defer projection.Close()
	if projection.debounce != DefaultProjectionDebounce || submit.projection != projection {
		t.Error("申请表单组装不符")
	}

	queue, actions := p.NewReviewDesk()
	if queue.interval != DefaultPollInterval || !queue.serialize || actions.queue != queue {
		t.Error("审批台组装不符")
	}
	if p.NewDecisionFlow().queue != nil {
		t.Error("单次审批不应关联队列")
	}
	if p.NewHistoryView().path != "/leaves/me" || p.NewCalendarView().path != "/leaves/calendar" {
		t.Error("只读视图路径不符")
	}
}
