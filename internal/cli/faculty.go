package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"salm/portal/internal/dto"
	"salm/portal/internal/portal"
)

func parseLeaveID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("无效的申请编号 %q", arg)
	}
	return id, nil
}

func newPendingCommand(app func() *App) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "查看本班待审批的请假申请",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if _, err := a.session.RequireRole(dto.RoleFaculty); err != nil {
				return err
			}

			queue, _ := a.portal.NewReviewDesk()
			if !watch {
				err := queue.Load(cmd.Context())
				renderQueue(a.out, queue.Snapshot())
				return err
			}

			// 持续同步，直到 Ctrl+C
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var mu sync.Mutex
			queue.OnChange(func(st portal.QueueState) {
				if st.Status == portal.QueueLoading && !st.Spinner {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				renderQueue(a.out, st)
			})
			queue.Start(ctx)
			<-ctx.Done()
			queue.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "按配置的间隔持续刷新")
	return cmd
}

func newApproveCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "通过请假申请",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if _, err := a.session.RequireRole(dto.RoleFaculty); err != nil {
				return err
			}
			id, err := parseLeaveID(args[0])
			if err != nil {
				return err
			}

			actions := a.portal.NewDecisionFlow()
			leave, err := actions.Approve(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "申请 %d 已通过（%s）\n", leave.ID, labelStatus(leave.Status))
			return nil
		},
	}
}

func newRejectCommand(app func() *App) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "驳回请假申请（必须填写理由）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if _, err := a.session.RequireRole(dto.RoleFaculty); err != nil {
				return err
			}
			id, err := parseLeaveID(args[0])
			if err != nil {
				return err
			}

			actions := a.portal.NewDecisionFlow()
			actions.OpenReject(id)
			defer actions.Cancel()

			if strings.TrimSpace(comment) == "" {
				fmt.Fprint(a.out, "驳回理由: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return portal.ErrEmptyComment
				}
				comment = strings.TrimRight(line, "\r\n")
			}
			actions.SetComment(comment)
			if !actions.CanConfirm() {
				return portal.ErrEmptyComment
			}

			leave, err := actions.ConfirmReject(cmd.Context())
			if err != nil {
				if errors.Is(err, portal.ErrActionInFlight) {
					return fmt.Errorf("申请 %d 正在处理中", id)
				}
				return err
			}
			fmt.Fprintf(a.out, "申请 %d 已驳回（%s）\n", leave.ID, labelStatus(leave.Status))
			return nil
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "驳回理由（缺省时从标准输入读取）")
	return cmd
}

func newCalendarCommand(app func() *App) *cobra.Command {
	var icsPath string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "查看本班已通过的请假",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if _, err := a.session.RequireRole(dto.RoleFaculty); err != nil {
				return err
			}

			entries, err := a.portal.NewCalendarView().Load(cmd.Context())
			if err != nil {
				return err
			}
			renderCalendar(a.out, entries)

			if icsPath == "" {
				return nil
			}
			data, err := portal.ExportCalendarICS(entries)
			if err != nil {
				return err
			}
			path, err := a.writeExport(icsPath, "leave_calendar.ics", []byte(data))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "已导出:", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&icsPath, "ics", "", "导出为 iCalendar 文件（仅写 --ics 时使用默认文件名）")
	cmd.Flags().Lookup("ics").NoOptDefVal = autoExportPath
	return cmd
}
