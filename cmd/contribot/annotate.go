package main

import (
	"encoding/json"
	"time"

	"contribot/internal/modkit/module"
	annotatemod "contribot/internal/services/annotate/module"

	"github.com/spf13/cobra"
)

type annotateFlags struct {
	batch  int
	budget time.Duration
}

func newAnnotateCmd(g *globals) *cobra.Command {
	f := &annotateFlags{}
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Drain the annotation queue through the summarizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnnotate(cmd, g, f)
		},
	}
	cmd.Flags().IntVar(&f.batch, "batch", 0, "items per batch (default: CONTRIBOT_ANNOTATE_BATCH_SIZE)")
	cmd.Flags().DurationVar(&f.budget, "budget", 0, "stop after this long (default: CONTRIBOT_ANNOTATE_BUDGET)")
	return cmd
}

func runAnnotate(cmd *cobra.Command, g *globals, f *annotateFlags) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := bootstrap(ctx, g, "annotate")
	if err != nil {
		return err
	}
	defer a.close(ctx)
	w, err := a.wire(ctx, g, true)
	if err != nil {
		return err
	}

	ports := module.MustPortsOf[annotatemod.Ports](w.annotate)
	batch, budget := ports.Options.BatchSize, ports.Options.Budget
	if f.batch > 0 {
		batch = f.batch
	}
	if f.budget > 0 {
		budget = f.budget
	}
	res, err := ports.Processor.Drain(ctx, batch, budget)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
	return err
}
