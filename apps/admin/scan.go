package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/insights/core/corpus"
	"github.com/trezcool/insights/core/ingest"
)

func (cli *commandLine) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the data root once and print what was ingested",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := cli.scan(cmd.Context())
			if err != nil {
				return err
			}
			students := make(map[string]struct{})
			for _, rec := range snap.Records {
				students[rec.Name] = struct{}{}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"files scanned: %d\nfiles skipped: %d\nrecords: %d\nrows dropped: %d\nstudents: %d\n",
				snap.FilesScanned, snap.FilesSkipped, snap.RecordCount, snap.RecordsDropped, len(students),
			)
			return nil
		},
	}
}

func (cli *commandLine) syncUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "syncusers",
		Short: "Create a student account for every student of the data root without one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			snap, err := cli.scan(ctx)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(snap.Records))
			for _, rec := range snap.Records {
				names = append(names, rec.Name)
			}
			res, err := cli.usrSvc.SyncStudents(ctx, names, cli.conf.Users.DefaultStudentPassword)
			if err != nil {
				return errors.Wrap(err, "syncing students")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created: %d\nexisting: %d\n", res.Created, res.Existing)
			for _, name := range res.Names {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  + %s\n", name)
			}
			return nil
		},
	}
}

// scan builds the corpus once through a store, like the API does at startup.
func (cli *commandLine) scan(ctx context.Context) (corpus.Snapshot, error) {
	rules := ingest.DefaultRules()
	if cli.conf.Data.RulesFile != "" {
		var err error
		if rules, err = ingest.LoadRules(cli.conf.Data.RulesFile); err != nil {
			return corpus.Snapshot{}, errors.Wrap(err, "loading rules")
		}
	}
	scanner := corpus.NewScanner(cli.conf.Data.Root, ingest.NewNormalizer(rules), cli.logger)
	store := corpus.NewStore()
	defer store.Close()
	rebuilder := corpus.NewRebuilder(scanner, store, cli.logger, corpus.RebuildOptions{})
	defer rebuilder.Close()

	if err := rebuilder.RebuildNow(ctx); err != nil {
		return corpus.Snapshot{}, errors.Wrap(err, "scanning data root")
	}
	return store.Snapshot(), nil
}
