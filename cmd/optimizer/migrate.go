package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/hybridopt/internal/db"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := opts.cfg.Database.GetDSN()
			if !status {
				return migrate(cmd.Context(), dsn, opts.log)
			}

			m, err := db.OpenMigrator(dsn)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			statuses, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tDESCRIPTION\tAPPLIED")
			for _, s := range statuses {
				fmt.Fprintf(w, "%d\t%s\t%t\n", s.Version, s.Description, s.Applied)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "Print migration status instead of migrating")
	return cmd
}
