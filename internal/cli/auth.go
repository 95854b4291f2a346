package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"salm/portal/internal/dto"
	"salm/portal/internal/portal"
)

func newLoginCommand(app func() *App) *cobra.Command {
	var email, password, role string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "登录并保存会话",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			resp, err := a.portal.Auth.Login(cmd.Context(), email, password, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "已登录：%s（%s）\n", resp.Name, resp.Role)
			fmt.Fprintf(a.out, "首页: %s\n", portal.LandingPath(resp.Role))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "邮箱")
	cmd.Flags().StringVar(&password, "password", "", "密码")
	cmd.Flags().StringVar(&role, "role", dto.RoleStudent, "角色（STUDENT|FACULTY）")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "清除本地会话",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if err := a.portal.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "已退出登录")
			return nil
		},
	}
}

func newWhoamiCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "显示当前登录用户",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a := app()
			u, ok := a.session.User()
			if !ok {
				fmt.Fprintln(a.out, "当前未登录")
				return nil
			}
			fmt.Fprintf(a.out, "%s（%s） 编号 %d 班级 %s\n", u.Name, u.Role, u.ID, classOf(u.ClassName))
			return nil
		},
	}
}
