package main

import (
	"contribot/internal/services/pipeline/domain"

	"github.com/spf13/cobra"
)

func newScheduleCmd(g *globals) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run scrape, drain and continuation jobs on cron schedules",
		Long: `Run the jobs named by CONTRIBOT_SCHEDULE_SCRAPE, CONTRIBOT_SCHEDULE_ANNOTATE
and CONTRIBOT_SCHEDULE_CONTINUE (standard 5-field cron, UTC). Set a spec
to "off" to disable that job.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := bootstrap(ctx, g, "schedule")
			if err != nil {
				return err
			}
			defer a.close(ctx)
			w, err := a.wire(ctx, g, false)
			if err != nil {
				return err
			}
			s, err := w.pipeline.Scheduler(domain.Request{SourceID: source})
			if err != nil {
				return err
			}
			return s.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "limit scheduled scrapes to one source id")
	return cmd
}
