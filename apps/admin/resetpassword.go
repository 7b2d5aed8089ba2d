package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/insights/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd, uname, pwd)
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "the user's username or email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (cli *commandLine) resetPassword(cmd *cobra.Command, uname, pwd string) error {
	ctx := cmd.Context()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.ResetPassword(ctx, usr, pwd)
	return err
}

func (cli *commandLine) approveCmd() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a self-registered teacher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			usr, err := cli.approve(cmd, uname)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user %q approved\n", usr.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "the user's username or email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (cli *commandLine) approve(cmd *cobra.Command, uname string) (user.User, error) {
	ctx := cmd.Context()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.Approve(ctx, usr)
}
