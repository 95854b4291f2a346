package portal

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"salm/portal/internal/dto"
)

// ErrExportGenerateFail 导出文件生成失败
var ErrExportGenerateFail = errors.New("导出文件生成失败")

const icsProductID = "-//salm//leave-portal//CN"

var statusNames = map[string]string{
	dto.StatusPending:  "待审批",
	dto.StatusApproved: "已通过",
	dto.StatusRejected: "已驳回",
}

// ExportHistoryXLSX 将请假记录导出为 Excel
func ExportHistoryXLSX(items []dto.LeaveRequest) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "请假记录"
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExportGenerateFail, err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 10)
	f.SetColWidth(sheetName, "B", "C", 14)
	f.SetColWidth(sheetName, "D", "D", 36)
	f.SetColWidth(sheetName, "E", "G", 12)
	f.SetColWidth(sheetName, "H", "H", 22)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"申请编号", "开始日期", "结束日期", "请假事由", "类别", "状态", "冲突数", "提交时间"}
	for i, h := range headers {
		c, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, c, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheetName, "A1", last, headerStyle)

	for r, it := range items {
		row := r + 2
		status := statusNames[it.Status]
		if status == "" {
			status = it.Status
		}
		values := []interface{}{it.ID, it.StartDate, it.EndDate, it.Reason, it.AutoType, status, it.ConflictCount, it.CreatedAt}
		for i, v := range values {
			c, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheetName, c, v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExportGenerateFail, err)
	}
	filename := fmt.Sprintf("请假记录_%s.xlsx", time.Now().Format("20060102"))
	return buf, filename, nil
}

// ExportCalendarICS 将日历条目导出为 iCalendar，每条请假一个全天事件
// DTEND 为结束日期的次日（RFC 5545 全天事件结束日不包含在内）
func ExportCalendarICS(entries []dto.CalendarEntry) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)

	now := time.Now().UTC()
	for _, e := range entries {
		start, err := time.Parse(dto.DateLayout, e.StartDate)
		if err != nil {
			return "", fmt.Errorf("%w: 开始日期 %q 无效", ErrExportGenerateFail, e.StartDate)
		}
		end, err := time.Parse(dto.DateLayout, e.EndDate)
		if err != nil {
			return "", fmt.Errorf("%w: 结束日期 %q 无效", ErrExportGenerateFail, e.EndDate)
		}
		if end.Before(start) {
			return "", fmt.Errorf("%w: %s 早于 %s", ErrExportGenerateFail, e.EndDate, e.StartDate)
		}

		// 同一条请假多次导出 UID 不变，日历应用可据此去重
		uid := uuid.NewSHA1(uuid.NameSpaceOID, []byte(e.StudentName+"|"+e.StartDate+"|"+e.EndDate+"|"+e.Reason))
		evt := cal.AddEvent(uid.String() + "@leave-portal")
		evt.SetDtStampTime(now)
		evt.SetAllDayStartAt(start)
		evt.SetAllDayEndAt(end.AddDate(0, 0, 1))
		evt.SetSummary(fmt.Sprintf("%s 请假（%s）", e.StudentName, e.AutoType))
		evt.SetDescription(e.Reason)
		if e.ClassName != nil {
			evt.SetLocation(*e.ClassName)
		}
	}
	return cal.Serialize(), nil
}
