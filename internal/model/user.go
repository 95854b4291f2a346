package model

// User 用户表，对应 users
// 学生与教师通过 class_name 关联：教师只能处理本班学生的请假
type User struct {
	ID               int64   `gorm:"primaryKey;autoIncrement"          json:"id"`
	Name             string  `gorm:"type:varchar(255);not null"        json:"name"`
	Email            string  `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	PasswordHash     string  `gorm:"type:varchar(255);not null"        json:"-"`
	Role             string  `gorm:"type:varchar(50);not null"         json:"role"`
	ClassName        *string `gorm:"type:varchar(50);index"            json:"class_name"`
	CasualBalance    int     `gorm:"not null;default:10"               json:"casual_balance"`
	TotalWorkingDays int     `gorm:"not null;default:100"              json:"total_working_days"`
	AbsentDays       int     `gorm:"not null;default:0"                json:"absent_days"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
