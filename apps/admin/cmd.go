package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword = errors.New("empty password")
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	db     *sqlx.DB // nil for the engines not backed by SQL
	usrSvc user.Service
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Insights administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(cli.addUserCmd())
	root.AddCommand(cli.resetPasswordCmd())
	root.AddCommand(cli.approveCmd())
	root.AddCommand(cli.migrateCmd())
	root.AddCommand(cli.scanCmd())
	root.AddCommand(cli.syncUsersCmd())
	return root
}

// run executes the command line args, program name included.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command) (string, error) {
	_, _ = fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}
