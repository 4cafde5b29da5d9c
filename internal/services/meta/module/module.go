// Package module wires meta endpoints into the API
package module

import (
	"time"

	modkit "socialsync/internal/modkit"
	"socialsync/internal/modkit/httpkit"
	str "socialsync/internal/platform/strings"
	metahttp "socialsync/internal/services/meta/http"
)

// Module serves liveness, readiness and build info
type Module struct {
	deps    modkit.Deps
	b       modkit.Built
	service string

	startedAt time.Time
}

// New constructs a meta module reporting as service
func New(deps modkit.Deps, service string, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)
	return &Module{deps: deps, b: b, service: service, startedAt: time.Now()}
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) {
		d := metahttp.Deps{ServiceName: m.service, StartedAt: m.startedAt}
		// typed nils would read as configured backends
		if m.deps.PG != nil {
			d.PG = m.deps.PG
		}
		if m.deps.CH != nil {
			d.CH = m.deps.CH
		}
		metahttp.Register(rr, d)
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.b.Name, "meta") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.b.Prefix) }

// Ports returns nil, meta exposes nothing to other modules
func (m *Module) Ports() any { return nil }
