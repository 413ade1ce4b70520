package main

import (
	"context"

	"contribot/internal/adapters/github"
	"contribot/internal/adapters/logsink"
	"contribot/internal/adapters/sources"
	"contribot/internal/adapters/summarizer"
	"contribot/internal/modkit"
	"contribot/internal/modkit/module"
	"contribot/internal/platform/config"
	"contribot/internal/platform/logger"
	"contribot/internal/platform/store"
	annotatedom "contribot/internal/services/annotate/domain"
	annotatemod "contribot/internal/services/annotate/module"
	pipelinemod "contribot/internal/services/pipeline/module"
	reconcilemod "contribot/internal/services/reconcile/module"
)

// app is everything one process invocation opens, closed in reverse by close
type app struct {
	cfg  config.Conf
	log  logger.Logger
	st   *store.Store
	deps modkit.Deps

	sink *logsink.Batcher
	gcs  *logsink.GCS
	stop context.CancelFunc
	done chan struct{}
}

// bootstrap loads env, builds the logger (tee'd to GCS when a bucket is set)
// and opens the store
func bootstrap(ctx context.Context, g *globals, role string) (*app, error) {
	if err := config.LoadDotenv(g.envFiles...); err != nil {
		return nil, err
	}
	cfg := config.New().Prefix("CONTRIBOT_")
	a := &app{cfg: cfg}

	sinkOpts := logsink.OptionsFromConfig(cfg.Prefix("LOGSINK_"))
	var sinks []logger.Sink
	if sinkOpts.Bucket != "" {
		gcs, err := logsink.NewGCS(ctx, sinkOpts.Bucket)
		if err != nil {
			return nil, err
		}
		a.gcs = gcs
		a.sink = logsink.NewBatcher(gcs, sinkOpts)
		sinks = append(sinks, a.sink)
	}
	opts := logger.FromEnv()
	opts.Component = role
	logger.Init(opts, sinks...)
	a.log = *logger.Get()

	if a.sink != nil {
		sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.stop, a.done = cancel, make(chan struct{})
		go func() {
			defer close(a.done)
			a.sink.Run(sctx)
		}()
	}

	st, err := store.Open(ctx, store.LoadConfig(cfg, role), store.WithLogger(a.log))
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.st = st
	a.deps = modkit.FromStore(a.log, cfg, st)
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.st != nil {
		if err := a.st.Close(ctx); err != nil {
			a.log.Error().Err(err).Msg("closing store failed")
		}
	}
	if a.stop != nil {
		a.stop()
		<-a.done
	}
	if a.sink == nil {
		return
	}
	if err := logger.FlushAll(context.WithoutCancel(ctx), a.sink); err != nil {
		a.log.Error().Err(err).Msg("final log flush failed")
	}
	if n := a.sink.Dropped(); n > 0 {
		a.log.Warn().Int("dropped", n).Msg("log lines dropped while the bucket was unreachable")
	}
	_ = a.gcs.Close()
}

// wired is the module graph of one process
type wired struct {
	registry  *sources.Registry
	reconcile *reconcilemod.Module
	annotate  *annotatemod.Module
	pipeline  *pipelinemod.Module
	// summarizing is false when no OpenAI key is configured; the queue still fills
	summarizing bool
}

// wire builds the module graph: annotate owns the queue the reconcilers enqueue on,
// and the pipeline drives both. requireSummarizer turns a missing key into an error
func (a *app) wire(ctx context.Context, g *globals, requireSummarizer bool) (*wired, error) {
	path := g.sourcesFile
	if path == "" {
		path = a.cfg.MayString("SOURCES_FILE", "")
	}
	f, err := sources.Load(path)
	if err != nil {
		return nil, err
	}
	w := &wired{registry: sources.NewRegistry(f, nil, a.deps.Component("sources"))}

	sumOpts := summarizer.OptionsFromConfig(a.cfg.Prefix("OPENAI_"))
	var sum annotatedom.Summarizer
	if sumOpts.APIKey != "" || requireSummarizer {
		s, err := summarizer.New(sumOpts, a.log)
		if err != nil {
			return nil, err
		}
		sum, w.summarizing = s, true
	}
	if w.annotate, err = annotatemod.New(ctx, a.deps, sum); err != nil {
		return nil, err
	}
	annPorts := module.MustPortsOf[annotatemod.Ports](w.annotate)

	ghOpts := github.OptionsFromConfig(a.cfg.Prefix("GITHUB_"))
	if ghOpts.Token == "" {
		a.log.Warn().Msg("no GitHub token configured; unauthenticated limits apply")
	}
	gw, err := github.New(ghOpts, a.log)
	if err != nil {
		return nil, err
	}
	w.reconcile = reconcilemod.New(a.deps, gw, annPorts.Queue)
	recPorts := module.MustPortsOf[reconcilemod.Ports](w.reconcile)

	var proc annotatedom.ProcessorPort
	if w.summarizing {
		proc = annPorts.Processor
	}
	var opts []pipelinemod.Option
	if a.sink != nil {
		opts = append(opts, pipelinemod.WithRunLog(a.sink))
	}
	if w.pipeline, err = pipelinemod.New(a.deps, w.registry, recPorts, proc, opts...); err != nil {
		return nil, err
	}

	for _, m := range []module.Module{w.annotate, w.reconcile, w.pipeline} {
		module.Register(m.Name(), m.Ports())
	}
	return w, nil
}
