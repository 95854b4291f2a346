package dto

// ── 请假模块 DTO ──

// 请假状态取值
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// DateLayout 日历日期格式（ISO 8601，无时区）
const DateLayout = "2006-01-02"

// ApplyLeaveRequest 提交请假请求
type ApplyLeaveRequest struct {
	StartDate string `json:"start_date" binding:"required" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date"   binding:"required" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason"     binding:"required" validate:"required,notblank"`
}

// LeaveActionRequest 审批动作请求（通过时 comment 为空串）
type LeaveActionRequest struct {
	Comment string `json:"comment"`
}

// LeaveRequest 请假记录
// 日期与创建时间按服务端返回的字符串原样保存，客户端不做时区归一化
type LeaveRequest struct {
	ID            int64  `json:"id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Reason        string `json:"reason"`
	AutoType      string `json:"auto_type"`
	Status        string `json:"status"`
	ConflictCount int    `json:"conflict_count"`
	CreatedAt     string `json:"created_at"`
}

// PendingLeave 待审批请假（附带申请人信息）
type PendingLeave struct {
	LeaveRequest
	StudentName string  `json:"student_name"`
	ClassName   *string `json:"class_name"`
}

// CalendarEntry 日历视图条目（仅已通过的请假）
type CalendarEntry struct {
	StudentName string  `json:"student_name"`
	ClassName   *string `json:"class_name"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	AutoType    string  `json:"auto_type"`
	Reason      string  `json:"reason"`
}

// AttendanceProjection 出勤影响预估（服务端计算，不落库）
type AttendanceProjection struct {
	TotalLeavesAllowed int `json:"total_leaves_allowed"`
	UsedLeaves         int `json:"used_leaves"`
	RemainingLeaves    int `json:"remaining_leaves"`

	TotalWorkingDays            int     `json:"total_working_days"`
	CurrentAbsentDays           int     `json:"current_absent_days"`
	CurrentAttendancePercentage float64 `json:"current_attendance_percentage"`

	ProjectedAbsentDays           int     `json:"projected_absent_days"`
	ProjectedAttendancePercentage float64 `json:"projected_attendance_percentage"`

	WillDropBelowThreshold bool    `json:"will_drop_below_threshold"`
	Threshold              float64 `json:"threshold"`

	ProjectedUsedLeaves      int `json:"projected_used_leaves"`
	ProjectedRemainingLeaves int `json:"projected_remaining_leaves"`
}
