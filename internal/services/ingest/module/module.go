// Package module wires ingest into the API using modkit
package module

import (
	"context"

	"socialsync/internal/core/audit"
	"socialsync/internal/core/catalog"
	modkit "socialsync/internal/modkit"
	"socialsync/internal/modkit/httpkit"
	"socialsync/internal/modkit/repokit"
	"socialsync/internal/platform/logger"
	str "socialsync/internal/platform/strings"
	"socialsync/internal/services/ingest/domain"
	"socialsync/internal/services/ingest/guardrails"
	ingesthttp "socialsync/internal/services/ingest/http"
	"socialsync/internal/services/ingest/repo"
	"socialsync/internal/services/ingest/service"
)

// Ports is the ingest port set other modules and cmds can use
type Ports struct {
	Runner  domain.RunnerPort
	Catalog domain.CatalogPort
	Runs    domain.RunLister // nil without the clickhouse sink
}

// Module implements the ingest module
type Module struct {
	deps modkit.Deps
	log  *logger.Logger
	b    modkit.Built
	opts Options

	cat    *catalog.Catalog
	svc    *service.Service
	memory *repo.Memory
	ch     *repo.CHSink
	ports  Ports
}

// New constructs the ingest module from deps.Cfg. Misconfiguration panics at startup
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("ingest"), modkit.WithPrefix("/ingest")}, opts...)...)
	o := FromConfig(deps.Cfg)
	log := deps.Logger("ingest")

	cat := catalog.Default()
	if len(o.CatalogFile) > 0 {
		ov, err := catalog.ParseOverlay(o.CatalogFile)
		if err == nil {
			cat, err = cat.WithOverlay(ov)
		}
		if err != nil {
			log.Panic().Err(err).Msg("ingest: catalog overlay")
		}
	}
	acfg, err := audit.LoadConfig(o.AuditFile)
	if err != nil {
		log.Panic().Err(err).Msg("ingest: audit config")
	}

	m := &Module{deps: deps, log: log, b: b, opts: o, cat: cat}

	var st domain.RecordStore
	if o.MemoryStore || deps.PG == nil {
		if !o.MemoryStore {
			log.Warn().Msg("ingest: postgres disabled, records are kept in memory")
		}
		m.memory = repo.NewMemory()
		st = m.memory
	} else {
		tx := repokit.WithBeginHooks(deps.PG,
			repokit.StatementTimeout(o.StmtTimeout),
			repokit.LockTimeout(o.LockTimeout),
		)
		st = repo.NewLocked(tx, repo.NewPG(cat))
	}

	var sinks repo.Fanout
	if o.Sink == SinkLog || o.Sink == SinkBoth {
		sinks = append(sinks, repo.LogSink{Log: log})
	}
	if o.Sink == SinkClickhouse || o.Sink == SinkBoth {
		if deps.CH != nil {
			m.ch = repo.NewCHSink(deps.CH)
			sinks = append(sinks, m.ch)
		} else {
			log.Warn().Str("sink", o.Sink).Msg("ingest: clickhouse disabled, runs are not stored")
		}
	}
	var sink domain.RunSink
	if len(sinks) > 0 {
		sink = sinks
	}

	m.svc = service.New(cat, audit.New(acfg), st, sink, service.Config{
		Workers:     o.Workers,
		MaxRetries:  o.MaxRetries,
		RetryBase:   o.RetryBase,
		Timeouts:    guardrails.Timeouts{Run: o.RunTimeout, Store: o.StoreTimeout},
		OwnerFilter: o.OwnerFilter,
	})

	m.ports = Ports{Runner: m.svc, Catalog: cat}
	if m.ch != nil {
		m.ports.Runs = m.ch
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) {
		ingesthttp.Register(rr, m.ports.Runner, m.ports.Catalog, m.ports.Runs, m.opts.MaxBody)
	})
}

// Migrate creates record tables in postgres and run tables in clickhouse
func (m *Module) Migrate(ctx context.Context) error {
	if m.memory == nil {
		if err := repo.EnsureSchema(ctx, m.deps.PG, m.cat); err != nil {
			return err
		}
	}
	if m.ch != nil {
		if err := m.ch.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Ports returns the ingest port set
func (m *Module) Ports() any { return m.ports }

// Runner returns the pipeline entry point
func (m *Module) Runner() domain.RunnerPort { return m.svc }

// Memory returns the in process store, nil when records go to postgres
func (m *Module) Memory() *repo.Memory { return m.memory }

// Options returns the resolved configuration
func (m *Module) Options() Options { return m.opts }

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.b.Name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.b.Prefix) }
