package main

import (
	"time"

	phttp "contribot/internal/platform/net/http"
	"contribot/internal/platform/net/middleware"

	"github.com/spf13/cobra"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the trigger API",
		Long: `Serve POST /v1/scrape, POST /v1/annotate and GET /v1/runs/{id}.
Set CONTRIBOT_API_TRIGGER_KEY to require a bearer key on the /v1 routes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g)
		},
	}
}

func runServe(cmd *cobra.Command, g *globals) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := bootstrap(ctx, g, "api")
	if err != nil {
		return err
	}
	defer a.close(ctx)
	w, err := a.wire(ctx, g, false)
	if err != nil {
		return err
	}

	apiCfg := a.cfg.Prefix("API_")
	srv := phttp.NewServer(apiCfg)
	r := srv.Router()
	// a scrape holds its request open for the whole run
	r.Use(middleware.Defaults(apiCfg.MayDuration("REQUEST_TIMEOUT", 2*time.Hour))...)
	w.pipeline.MountRoutes(r)
	return srv.Run(ctx)
}
