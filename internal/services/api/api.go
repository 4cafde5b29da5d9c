// Package api provides the HTTP API for the application
package api

import (
	"context"

	"socialsync/internal/modkit"
	"socialsync/internal/modkit/httpkit"
	"socialsync/internal/modkit/module"
	"socialsync/internal/platform/config"
	"socialsync/internal/platform/logger"
	phttp "socialsync/internal/platform/net/http"
	"socialsync/internal/platform/store"

	ingestmod "socialsync/internal/services/ingest/module"
	metamod "socialsync/internal/services/meta/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableProfiler bool

	// Migrate creates record and run tables before routes are served
	Migrate bool
}

// Mount builds the modules, registers their ports and mounts them under /api/v1
func Mount(ctx context.Context, r phttp.Router, opt Options) error {
	deps := modkit.FromStore(opt.Config, opt.Store)
	deps.Log = opt.Logger

	ingest := ingestmod.New(deps)
	if opt.Migrate {
		if err := ingest.Migrate(ctx); err != nil {
			return err
		}
	}

	mods := []module.Module{
		metamod.New(deps, "socialsync-api"),
		ingest,
	}

	stack := httpkit.CommonStack(httpkit.StackFromConfig(opt.Config))
	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
	return nil
}
