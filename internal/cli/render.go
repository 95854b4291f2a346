package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"salm/portal/internal/dto"
	"salm/portal/internal/portal"
	pkgerrors "salm/portal/pkg/errors"
)

var statusLabel = map[string]string{
	dto.StatusPending:  "待审批",
	dto.StatusApproved: "已通过",
	dto.StatusRejected: "已驳回",
}

func labelStatus(s string) string {
	if l, ok := statusLabel[s]; ok {
		return l
	}
	return s
}

func classOf(p *string) string {
	if p == nil || *p == "" {
		return "-"
	}
	return *p
}

// renderProjection 出勤影响预估
func renderProjection(w io.Writer, days int, p *dto.AttendanceProjection) {
	fmt.Fprintf(w, "出勤影响预估（%d 天）\n", days)
	fmt.Fprintf(w, "  假期余额: %d / %d，提交后剩余 %d\n", p.RemainingLeaves, p.TotalLeavesAllowed, p.ProjectedRemainingLeaves)
	fmt.Fprintf(w, "  出勤率: 当前 %.1f%%，预估 %.1f%%（缺勤 %d → %d / %d 天）\n",
		p.CurrentAttendancePercentage, p.ProjectedAttendancePercentage,
		p.CurrentAbsentDays, p.ProjectedAbsentDays, p.TotalWorkingDays)
	if p.WillDropBelowThreshold {
		fmt.Fprintf(w, "  警告: 出勤率将低于 %.0f%%\n", p.Threshold)
	}
}

// renderResult 提交结果
func renderResult(w io.Writer, l *dto.LeaveRequest) {
	fmt.Fprintln(w, "请假申请已提交")
	fmt.Fprintf(w, "  申请编号: %d\n", l.ID)
	fmt.Fprintf(w, "  状态: %s\n", labelStatus(l.Status))
	fmt.Fprintf(w, "  类别: %s\n", l.AutoType)
	fmt.Fprintf(w, "  冲突数: %d\n", l.ConflictCount)
}

func renderLeaves(w io.Writer, items []dto.LeaveRequest) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "编号\t开始\t结束\t类别\t状态\t冲突\t事由")
	for _, l := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			l.ID, l.StartDate, l.EndDate, l.AutoType, labelStatus(l.Status), l.ConflictCount, l.Reason)
	}
	_ = tw.Flush()
}

func renderHistory(w io.Writer, items []dto.LeaveRequest, byStatus bool) {
	if len(items) == 0 {
		fmt.Fprintln(w, "暂无请假记录")
		return
	}
	if !byStatus {
		renderLeaves(w, items)
		return
	}
	for _, b := range portal.GroupByStatus(items) {
		fmt.Fprintf(w, "── %s（%d）──\n", labelStatus(b.Key), len(b.Items))
		renderLeaves(w, b.Items)
	}
}

func renderQueue(w io.Writer, st portal.QueueState) {
	switch {
	case st.Spinner:
		fmt.Fprintln(w, "加载中...")
		return
	case st.Err != nil:
		fmt.Fprintln(w, "刷新失败:", pkgerrors.Message(st.Err, "API Request Failed"))
	}
	if len(st.Items) == 0 {
		if st.Status == portal.QueueLoaded || st.Err != nil {
			fmt.Fprintln(w, "没有待审批的请假申请")
		}
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "编号\t学生\t班级\t开始\t结束\t类别\t冲突\t事由")
	for _, l := range st.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			l.ID, l.StudentName, classOf(l.ClassName), l.StartDate, l.EndDate, l.AutoType, l.ConflictCount, l.Reason)
	}
	_ = tw.Flush()
}

func renderCalendar(w io.Writer, entries []dto.CalendarEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "暂无已通过的请假")
		return
	}
	for _, b := range portal.GroupByDate(entries, func(e dto.CalendarEntry) string { return e.StartDate }) {
		fmt.Fprintln(w, b.Key)
		for _, e := range b.Items {
			fmt.Fprintf(w, "  %s（%s）至 %s  [%s] %s\n", e.StudentName, classOf(e.ClassName), e.EndDate, e.AutoType, e.Reason)
		}
	}
}
