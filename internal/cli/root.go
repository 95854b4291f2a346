package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"salm/portal/config"
	applogger "salm/portal/pkg/logger"
)

// AppBuilder 由命令行参数构造 App（测试中替换为固定实例）
type AppBuilder func(ctx context.Context, cmd *cobra.Command) (*App, error)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// Execute 运行 leavectl
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand(nil)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand 创建根命令；build 为 nil 时从配置文件构造 App
func NewRootCommand(build AppBuilder) *cobra.Command {
	opts := &rootOptions{}
	var app *App

	root := &cobra.Command{
		Use:           "leavectl",
		Short:         "学生请假门户命令行客户端",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if build == nil {
				build = opts.buildApp
			}
			a, err := build(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			app = a
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if app != nil {
				app.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "配置文件路径")
	// 标准输出留给业务内容，CLI 默认只输出 warn 以上的日志
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "日志级别")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "日志格式（json|console）")

	get := func() *App { return app }
	root.AddCommand(
		newLoginCommand(get),
		newLogoutCommand(get),
		newWhoamiCommand(get),
		newApplyCommand(get),
		newHistoryCommand(get),
		newPendingCommand(get),
		newApproveCommand(get),
		newRejectCommand(get),
		newCalendarCommand(get),
	)
	return root
}

func (o *rootOptions) buildApp(ctx context.Context, cmd *cobra.Command) (*App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Log.Level = o.logLevel
	cfg.Log.Format = o.logFormat
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// Main cmd/leavectl 的入口，返回进程退出码
func Main(ctx context.Context, args []string, errOut io.Writer) int {
	if err := Execute(ctx, args); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintln(errOut, "错误:", err)
		return 1
	}
	return 0
}
