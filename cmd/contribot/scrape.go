package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	perr "contribot/internal/platform/errors"
	"contribot/internal/services/pipeline/domain"
	pipelinemod "contribot/internal/services/pipeline/module"
	reconciledom "contribot/internal/services/reconcile/domain"

	"github.com/spf13/cobra"
)

type scrapeFlags struct {
	depth  string
	source string
	resume string
}

func newScrapeCmd(g *globals) *cobra.Command {
	f := &scrapeFlags{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one discovery pass over the configured sources",
		Long: `Run one discovery pass: fetch the lists, reconcile repositories and issues,
then drain the annotation queue when a summarizer is configured.

Exit status is 0 when the run finished, 2 when it paused on a budget or
rate limit (resume with --resume), 3 when GitHub rejected the token and 1
on any other failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, g, f)
		},
	}
	cmd.Flags().StringVar(&f.depth, "depth", "", "count-only or full (default: CONTRIBOT_RECONCILE_DEPTH)")
	cmd.Flags().StringVar(&f.source, "source", "", "limit the run to one source id")
	cmd.Flags().StringVar(&f.resume, "resume", "", "resume a paused run by id")
	cmd.MarkFlagsMutuallyExclusive("resume", "source")
	cmd.MarkFlagsMutuallyExclusive("resume", "depth")
	return cmd
}

func runScrape(cmd *cobra.Command, g *globals, f *scrapeFlags) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := bootstrap(ctx, g, "scrape")
	if err != nil {
		return err
	}
	defer a.close(ctx)
	w, err := a.wire(ctx, g, false)
	if err != nil {
		return err
	}
	out, err := scrape(ctx, w.pipeline, f)
	if out.RunID != "" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	}
	if code := exitCodeFor(out, err); code != exitOK {
		return &exitError{code: code, err: err}
	}
	return nil
}

func scrape(ctx context.Context, m *pipelinemod.Module, f *scrapeFlags) (domain.Outcome, error) {
	ports := m.Ports().(pipelinemod.Ports)
	if f.resume != "" {
		run, err := ports.Runs.GetRun(ctx, f.resume)
		if err != nil {
			return domain.Outcome{}, err
		}
		if run.Cursor == nil {
			return domain.Outcome{}, perr.InvalidArgf("run %s has no cursor to resume from (status %s)", run.ID, run.Status)
		}
		return ports.Runner.Resume(ctx, *run.Cursor)
	}

	req := domain.Request{Trigger: domain.TriggerCLI, SourceID: f.source}
	if f.depth != "" {
		d, err := reconciledom.ParseDepth(f.depth)
		if err != nil {
			return domain.Outcome{}, err
		}
		req.Depth = d
	}
	return ports.Runner.Run(ctx, req)
}

// exitCodeFor maps a run outcome onto the process exit status
func exitCodeFor(out domain.Outcome, err error) int {
	switch {
	case errors.Is(err, domain.ErrCredentialRejected), out.State == domain.StateAborted:
		return exitAborted
	case err != nil:
		return exitFailed
	case out.State == domain.StatePaused:
		return exitPaused
	default:
		return exitOK
	}
}

// signalContext cancels on SIGINT or SIGTERM so a run records its pause
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}
