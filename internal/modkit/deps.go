// Package modkit provides module wiring and core deps
package modkit

import (
	"contribot/internal/modkit/repokit"
	"contribot/internal/platform/config"
	"contribot/internal/platform/logger"
	"contribot/internal/platform/store"

	"github.com/redis/go-redis/v9"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	PG    repokit.TxRunner
	CH    store.Clickhouse
	Redis *redis.Client
}

// FromStore copies the opened backends out of st
func FromStore(log logger.Logger, cfg config.Conf, st *store.Store) Deps {
	d := Deps{Log: log, Cfg: cfg}
	if st != nil {
		d.PG, d.CH, d.Redis = st.PG, st.CH, st.Redis
	}
	return d
}

// Component returns a child logger tagged with name
func (d Deps) Component(name string) logger.Logger { return logger.Component(d.Log, name) }
