package dto

// ── 认证模块 DTO ──

// 角色取值
const (
	RoleStudent = "STUDENT"
	RoleFaculty = "FACULTY"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required"                        validate:"required,email"`
	Password string `json:"password" binding:"required"                        validate:"required"`
	Role     string `json:"role"     binding:"required,oneof=STUDENT FACULTY" validate:"required,oneof=STUDENT FACULTY"`
}

// LoginResponse 登录成功响应
type LoginResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	ClassName   *string `json:"class_name"`
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
}

// SessionUser 本地保存的用户身份（不含 Token）
type SessionUser struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	ClassName *string `json:"class_name"`
}

// User 从登录响应中提取用户身份
func (r *LoginResponse) User() SessionUser {
	return SessionUser{
		ID:        r.ID,
		Name:      r.Name,
		Role:      r.Role,
		ClassName: r.ClassName,
	}
}
