// Command socialsync-api serves the ingest intake API
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"socialsync/internal/platform/config"
	"socialsync/internal/platform/logger"
	phttp "socialsync/internal/platform/net/http"
	"socialsync/internal/platform/net/middleware"
	"socialsync/internal/platform/store"

	"socialsync/internal/services/api"

	"github.com/go-chi/chi/v5"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// without SERVICE_PGSQL_DBURL records are kept in memory
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")      // SERVICE_PGSQL_*
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // SERVICE_CLICKHOUSE_*

	logger.Init(logger.FromEnv())
	l := logger.Get()

	st, err := store.Open(ctx, store.Config{
		AppName: "socialsync-api",
		PG: store.PGConfig{
			Enabled:     pgCfg.Has("DBURL"),
			URL:         pgCfg.MayString("DBURL", ""),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:    chCfg.Has("DBURL"),
			URL:        chCfg.MayString("DBURL", ""),
			LogSQL:     chCfg.MayBool("LOG_SQL", false),
			ClientName: "socialsync",
			ClientTag:  "api",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	srv := phttp.NewServer(apiCfg, func(m *chi.Mux) {
		m.Use(middleware.Defaults(apiCfg.MayDuration("REQUEST_TIMEOUT", 2*time.Minute))...)
	})

	if err := api.Mount(ctx, srv.Router(), api.Options{
		Config:         apiCfg,
		Store:          st,
		Logger:         l,
		EnableProfiler: apiCfg.MayBool("PPROF", false),
		Migrate:        apiCfg.MayBool("MIGRATE", true),
	}); err != nil {
		l.Panic().Err(err).Msg("api mount failed")
	}

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
