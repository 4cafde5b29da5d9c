// Command socialsync-ingest runs one scraper dataset export through the pipeline
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"socialsync/internal/adapters/ingest/dataset"
	"socialsync/internal/modkit"
	"socialsync/internal/platform/config"
	"socialsync/internal/platform/logger"
	"socialsync/internal/platform/store"
	"socialsync/internal/services/ingest/domain"
	ingestmod "socialsync/internal/services/ingest/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	var (
		fItems   = flag.String("items", "", "dataset export: file path, http(s) URL or - for stdin (JSON array or NDJSON, gzip ok)")
		fParams  = flag.String("params", "", "request parameters as JSON or @file")
		fKind    = flag.String("kind", "", "dataset kind hint: profile | post | comment")
		fOwner   = flag.String("owner", "", "keep only posts owned by this username")
		fMemory  = flag.Bool("memory", false, "keep records in memory instead of postgres")
		fJSON    = flag.Bool("json", false, "print the summary as JSON")
		fInit    = flag.Bool("init-schema", false, "create record tables and exit unless -items is given")
		fTimeout = flag.Duration("timeout", 0, "overall run budget, 0 for none")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := logger.Get()
	if *fItems == "" && !*fInit {
		l.Fatal().Msg("-items is required")
	}

	params, err := readParams(*fParams)
	if err != nil {
		l.Fatal().Err(err).Msg("bad -params")
	}

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	usePG := !*fMemory
	var pgURL string
	if usePG {
		pgURL = pgCfg.MustString("DBURL")
	}
	st, err := store.Open(ctx, store.Config{
		AppName: "socialsync-ingest",
		PG: store.PGConfig{
			Enabled:     usePG,
			URL:         pgURL,
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:    chCfg.Has("DBURL"),
			URL:        chCfg.MayString("DBURL", ""),
			LogSQL:     chCfg.MayBool("LOG_SQL", false),
			ClientName: "socialsync",
			ClientTag:  "ingest",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// surface flags to FromConfig
	mustSetEnv("CORE_INGEST_MEMORY_STORE", map[bool]string{true: "1", false: ""}[*fMemory])
	mustSetEnv("CORE_INGEST_RUN_TIMEOUT", map[bool]string{true: fTimeout.String(), false: ""}[*fTimeout > 0])

	deps := modkit.FromStore(root, st)
	deps.Log = l
	mod := ingestmod.New(deps)

	if *fInit {
		if err := mod.Migrate(ctx); err != nil {
			l.Fatal().Err(err).Msg("init schema failed")
		}
		l.Info().Bool("postgres", usePG).Bool("clickhouse", st.CH != nil).Msg("schema ready")
		if *fItems == "" {
			return
		}
	}

	items, err := readItems(ctx, *fItems)
	if err != nil {
		l.Fatal().Err(err).Msg("read dataset")
	}

	start := time.Now()
	sum, runErr := mod.Runner().Run(ctx, domain.RunInput{
		RequestParameters: params,
		Items:             items,
		KindHint:          *fKind,
		OwnerUsername:     *fOwner,
	})
	if runErr != nil && sum.RunID == "" {
		l.Fatal().Err(runErr).Msg("ingest failed")
	}

	if *fJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			l.Fatal().Err(err).Msg("encode summary")
		}
	} else {
		render(os.Stdout, sum, time.Since(start))
	}

	if runErr != nil {
		l.Error().Err(runErr).Str("run_id", sum.RunID).Msg("run aborted, summary is partial")
		os.Exit(2)
	}
	if len(sum.Failures) > 0 {
		os.Exit(1)
	}
}

func readParams(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b := []byte(s)
	if path, ok := strings.CutPrefix(s, "@"); ok {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return out, nil
}

func readItems(ctx context.Context, src string) ([]map[string]any, error) {
	rc, err := dataset.Open(ctx, src, nil)
	if err != nil {
		return nil, err
	}
	rd, err := dataset.NewReader(rc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rd.Close() }()

	items, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	n, skipped, size := rd.Stats()
	l := logger.Named("dataset")
	l.Info().Str("src", src).Int("items", n).Int("skipped", skipped).Int64("bytes", size).Msg("dataset read")
	return items, nil
}
