package modkit

import (
	"net/http"

	phttp "contribot/internal/platform/net/http"
)

// Built is the resolved form of a module's options
type Built struct {
	Name     string
	Prefix   string
	Mw       []func(http.Handler) http.Handler
	Register func(phttp.Router)
}

// Build applies opts and fills defaults
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.register == nil {
		c.register = func(phttp.Router) {}
	}
	return Built{
		Name:     c.name,
		Prefix:   c.prefix,
		Mw:       append([]func(http.Handler) http.Handler(nil), c.mw...),
		Register: c.register,
	}
}

// Mount attaches b under its prefix with its middleware scoped to that subtree
func (b Built) Mount(r phttp.Router) {
	attach := func(sub phttp.Router) {
		if len(b.Mw) > 0 {
			sub.Use(b.Mw...)
		}
		b.Register(sub)
	}
	if b.Prefix == "" || b.Prefix == "/" {
		r.Group(attach)
		return
	}
	r.Route(b.Prefix, attach)
}
