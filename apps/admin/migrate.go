package main

import (
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/trezcool/insights/storage/database"
)

var gooseRunFunc = goose.RunContext // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command (up, down, status, version, redo, reset, up-to, down-to...)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.migrate(cmd, args)
		},
	}
}

func (cli *commandLine) migrate(cmd *cobra.Command, args []string) error {
	if cli.db == nil {
		return database.ErrNoSQLEngine
	}
	if err := database.PrepareGoose(cli.db); err != nil {
		return err
	}
	return gooseRunFunc(cmd.Context(), args[0], cli.db.DB, database.MigrationsDir, args[1:]...)
}
