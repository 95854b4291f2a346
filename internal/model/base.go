package model

import "time"

// 角色
const (
	RoleStudent = "STUDENT"
	RoleFaculty = "FACULTY"
)

// 请假状态
const (
	LeaveStatusPending  = "PENDING"
	LeaveStatusApproved = "APPROVED"
	LeaveStatusRejected = "REJECTED"
)

// 请假类别（由服务端按事由关键词判定）
const (
	LeaveTypeMedical  = "MEDICAL"
	LeaveTypePersonal = "PERSONAL"
	LeaveTypeAcademic = "ACADEMIC"
	LeaveTypeOther    = "OTHER"
)

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
