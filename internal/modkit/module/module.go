// Package module holds the bootstrap registry used to cross wire module ports
package module

import (
	phttp "contribot/internal/platform/net/http"
)

// Module mirrors modkit.Module; it lives here so port lookups avoid an import knot
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
