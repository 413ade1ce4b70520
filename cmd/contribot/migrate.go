package main

import (
	"fmt"

	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/store/schema"

	"github.com/spf13/cobra"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres schema and the clickhouse run mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := bootstrap(ctx, g, "migrate")
			if err != nil {
				return err
			}
			defer a.close(ctx)
			if a.st.PG == nil {
				return perr.InvalidArgf("migrate needs postgres; set CONTRIBOT_PG_ENABLED and CONTRIBOT_PG_URL")
			}

			applied, err := schema.Apply(ctx, a.st.PG, a.log)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "postgres schema up to date")
			}
			if a.st.CH != nil {
				if err := schema.ApplyClickhouse(ctx, a.st.CH, a.log); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "clickhouse run mirror ready")
			}
			return nil
		},
	}
}
