package module

import (
	"contribot/internal/platform/config"
	"contribot/internal/services/reconcile/domain"
	"contribot/internal/services/reconcile/service"
)

// Options holds configuration for the reconcile module
type Options struct {
	Depth       domain.Depth
	InsertChunk int
}

// FromConfig reads RECONCILE_* settings
func FromConfig(cfg config.Conf) Options {
	rc := cfg.Prefix("RECONCILE_")
	depth, err := domain.ParseDepth(rc.MayString("DEPTH", string(domain.DepthCountOnly)))
	if err != nil {
		depth = domain.DepthCountOnly
	}
	return Options{
		Depth:       depth,
		InsertChunk: rc.MayInt("INSERT_CHUNK", service.DefaultInsertChunk),
	}
}
