package model

import "time"

// LeaveRequest 请假申请表，对应 leave_requests
type LeaveRequest struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"                 json:"id"`
	StudentID       int64     `gorm:"not null;index"                           json:"student_id"`
	StartDate       time.Time `gorm:"type:date;not null"                       json:"start_date"`
	EndDate         time.Time `gorm:"type:date;not null"                       json:"end_date"`
	Reason          string    `gorm:"type:text;not null"                       json:"reason"`
	AutoType        string    `gorm:"type:varchar(50);not null"                json:"auto_type"`
	Status          string    `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"`
	ConflictCount   int       `gorm:"not null;default:0"                       json:"conflict_count"`
	DecisionComment *string   `gorm:"type:text"                                json:"decision_comment,omitempty"`
	BaseModel

	// 关联
	Student *User `gorm:"foreignKey:StudentID;references:ID" json:"student,omitempty"`
}

// TableName 指定表名
func (LeaveRequest) TableName() string { return "leave_requests" }

// Days 包含首尾的请假天数
func (l *LeaveRequest) Days() int {
	return int(l.EndDate.Sub(l.StartDate).Hours()/24) + 1
}
