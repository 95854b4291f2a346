package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"salm/portal/internal/dto"
	"salm/portal/internal/portal"
)

// 导出参数取此值时使用默认文件名，写入 export.dir
const autoExportPath = "-"

func newApplyCommand(app func() *App) *cobra.Command {
	var start, end, reason string
	var noPreview bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "提交请假申请（提交前显示出勤影响预估）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if _, err := a.session.RequireRole(dto.RoleStudent); err != nil {
				return err
			}

			projection, submission := a.portal.NewApplyForm()
			defer projection.Close()

			if !noPreview {
				if st, ok := a.awaitProjection(cmd.Context(), projection, start, end); ok {
					renderProjection(a.out, st.Days, st.Projection)
				}
			}

			leave, err := submission.Submit(cmd.Context(), start, end, reason)
			if err != nil {
				return err
			}
			renderResult(a.out, leave)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "开始日期 YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "结束日期 YYYY-MM-DD")
	cmd.Flags().StringVar(&reason, "reason", "", "请假事由")
	cmd.Flags().BoolVar(&noPreview, "no-preview", false, "跳过出勤影响预估")
	return cmd
}

// awaitProjection 设置日期区间并等待一次预估完成
// 日期无效、预估失败或超时时 ok=false，不影响后续提交
func (a *App) awaitProjection(ctx context.Context, e *portal.ProjectionEngine, start, end string) (portal.ProjectionState, bool) {
	if days, ok := portal.InclusiveDays(start, end); !ok || days <= 0 {
		return portal.ProjectionState{}, false
	}

	states := make(chan portal.ProjectionState, 4)
	e.OnChange(func(st portal.ProjectionState) {
		select {
		case states <- st:
		default:
		}
	})
	e.SetRange(start, end)

	timeout := a.cfg.Projection.Debounce + a.cfg.API.Timeout + time.Second
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	started := false
	for {
		select {
		case st := <-states:
			if st.Loading {
				started = true
				continue
			}
			if started {
				return st, st.Projection != nil
			}
		case <-timer.C:
			return portal.ProjectionState{}, false
		case <-ctx.Done():
			return portal.ProjectionState{}, false
		}
	}
}

func newHistoryCommand(app func() *App) *cobra.Command {
	var byStatus bool
	var xlsxPath string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看我的请假记录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if _, err := a.session.RequireRole(dto.RoleStudent); err != nil {
				return err
			}

			items, err := a.portal.NewHistoryView().Load(cmd.Context())
			if err != nil {
				return err
			}
			renderHistory(a.out, items, byStatus)

			if xlsxPath == "" {
				return nil
			}
			buf, name, err := portal.ExportHistoryXLSX(items)
			if err != nil {
				return err
			}
			path, err := a.writeExport(xlsxPath, name, buf.Bytes())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "已导出:", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&byStatus, "by-status", false, "按状态分组")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "导出为 Excel 文件（仅写 --xlsx 时使用默认文件名）")
	cmd.Flags().Lookup("xlsx").NoOptDefVal = autoExportPath
	return cmd
}

// writeExport 写出导出文件，返回实际路径
func (a *App) writeExport(path, defaultName string, data []byte) (string, error) {
	if path == autoExportPath {
		path = filepath.Join(a.cfg.Export.Dir, defaultName)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("创建导出目录失败: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("写入导出文件失败: %w", err)
	}
	return path, nil
}
