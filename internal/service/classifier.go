package service

import (
	"strings"

	"salm/portal/internal/model"
)

// 按顺序匹配：命中即返回
var classifierRules = []struct {
	category string
	keywords []string
}{
	{model.LeaveTypeMedical, []string{
		"fever", "doctor", "sick", "ill", "illness", "hospital",
		"headache", "cold", "covid", "infection",
	}},
	{model.LeaveTypePersonal, []string{
		"marriage", "function", "festival", "personal", "family",
		"ceremony", "travel", "out of station", "hometown",
	}},
	{model.LeaveTypeAcademic, []string{
		"seminar", "project", "internship", "exam", "examination",
		"lab", "viva", "workshop", "presentation",
		"hackathon", "hackthon", "coding contest", "coding competition",
		"technical fest", "tech fest",
	}},
}

// ClassifyReason 按事由关键词判定请假类别（子串匹配，不区分大小写）
func ClassifyReason(reason string) string {
	text := strings.ToLower(reason)
	for _, rule := range classifierRules {
		for _, k := range rule.keywords {
			if strings.Contains(text, k) {
				return rule.category
			}
		}
	}
	return model.LeaveTypeOther
}
