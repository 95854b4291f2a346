package model

// 通知类型
const (
	NotificationLeaveApplied  = "leave_applied"
	NotificationLeaveApproved = "leave_approved"
	NotificationLeaveRejected = "leave_rejected"
)

// 通知投递结果
const (
	NotificationSent   = "SENT"
	NotificationFailed = "FAILED"
)

// Notification 通知投递记录，对应 notifications
type Notification struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"          json:"id"`
	LeaveID   int64   `gorm:"not null;index"                    json:"leave_id"`
	UserID    *int64  `gorm:"index"                             json:"user_id,omitempty"` // 收件账号，兜底邮箱时为空
	Recipient string  `gorm:"type:varchar(255);not null"        json:"recipient"`
	Type      string  `gorm:"type:varchar(50);not null"         json:"type"`
	Subject   string  `gorm:"type:varchar(255);not null"        json:"subject"`
	Content   string  `gorm:"type:text;not null"                json:"content"`
	Channel   string  `gorm:"type:varchar(20);not null"         json:"channel"` // log | smtp
	Status    string  `gorm:"type:varchar(20);not null"         json:"status"`
	Error     *string `gorm:"type:text"                         json:"error,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
