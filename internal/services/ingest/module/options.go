package module

import (
	"strings"
	"time"

	"socialsync/internal/platform/config"
)

// Sink modes
const (
	SinkLog        = "log"
	SinkClickhouse = "clickhouse"
	SinkBoth       = "both"
	SinkNone       = "none"
)

// Options holds configuration options for the ingest service
type Options struct {
	Workers      int
	MaxRetries   int
	RetryBase    time.Duration
	RunTimeout   time.Duration
	StoreTimeout time.Duration
	StmtTimeout  time.Duration
	LockTimeout  time.Duration

	// AuditFile and CatalogFile hold YAML read from the paths in AUDIT_FILE and CATALOG_FILE
	AuditFile   []byte
	CatalogFile []byte

	OwnerFilter bool
	Sink        string

	// MemoryStore keeps records in process, also chosen when postgres is disabled
	MemoryStore bool

	// MaxBody caps POST /runs request bodies
	MaxBody int64
}

// FromConfig reads the ingest options from config with CORE_INGEST_ prefix
func FromConfig(cfg config.Conf) Options {
	in := cfg.Prefix("CORE_INGEST_")
	return Options{
		Workers:      in.MayInt("WORKERS", 4),
		MaxRetries:   in.MayInt("RETRIES", 3),
		RetryBase:    in.MayDuration("RETRY_BASE", 250*time.Millisecond),
		RunTimeout:   in.MayDuration("RUN_TIMEOUT", 0),
		StoreTimeout: in.MayDuration("STORE_TIMEOUT", 10*time.Second),
		StmtTimeout:  in.MayDuration("STATEMENT_TIMEOUT", 5*time.Second),
		LockTimeout:  in.MayDuration("LOCK_TIMEOUT", 3*time.Second),
		AuditFile:    in.MayFile("AUDIT_FILE"),
		CatalogFile:  in.MayFile("CATALOG_FILE"),
		OwnerFilter:  in.MayBool("OWNER_FILTER", true),
		Sink:         strings.ToLower(in.MayEnum("SINK", SinkLog, SinkLog, SinkClickhouse, SinkBoth, SinkNone)),
		MemoryStore:  in.MayBool("MEMORY_STORE", false),
		MaxBody:      int64(in.MayInt("MAX_BODY_MB", 32)) << 20,
	}
}
