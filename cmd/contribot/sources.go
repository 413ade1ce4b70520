package main

import (
	"fmt"
	"text/tabwriter"

	"contribot/internal/adapters/sources"
	"contribot/internal/platform/config"
	"contribot/internal/platform/logger"

	"github.com/spf13/cobra"
)

func newSourcesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect the configured repository lists",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every configured source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadSources(g)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tADAPTER\tLABEL\tENABLED\tURL")
			for _, s := range f.Sources {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", s.ID, s.Adapter, s.Label, s.IsEnabled(), s.URL)
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "fetch",
		Short: "Fetch every enabled source and print how many repositories each lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			f, err := loadSources(g)
			if err != nil {
				return err
			}
			reg := sources.NewRegistry(f, nil, logger.Component(*logger.Get(), "sources"))
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tREPOS\tERROR")
			failed := 0
			for _, b := range reg.FetchAll(ctx) {
				msg := ""
				if b.Err != nil {
					msg, failed = b.Err.Error(), failed+1
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Source.ID, len(b.Refs), msg)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return &exitError{code: exitFailed, err: fmt.Errorf("%d source(s) failed", failed)}
			}
			return nil
		},
	})
	return cmd
}

func loadSources(g *globals) (*sources.File, error) {
	if err := config.LoadDotenv(g.envFiles...); err != nil {
		return nil, err
	}
	path := g.sourcesFile
	if path == "" {
		path = config.New().Prefix("CONTRIBOT_").MayString("SOURCES_FILE", "")
	}
	return sources.Load(path)
}
