// Package modkit provides module wiring and core deps
package modkit

import (
	"socialsync/internal/platform/config"
	"socialsync/internal/platform/logger"
	"socialsync/internal/platform/store"
)

// Deps holds core dependencies passed to modules. PG and CH are nil when the
// backend is disabled; modules fall back or fail in FromConfig, never later
type Deps struct {
	Log *logger.Logger
	Cfg config.Conf
	PG  store.TxRunner
	CH  store.Clickhouse
}

// FromStore fills the backend seams from an opened store
func FromStore(cfg config.Conf, st *store.Store) Deps {
	d := Deps{Cfg: cfg}
	if st != nil {
		d.PG, d.CH = st.PG, st.CH
	}
	return d
}

// Logger returns Log or the named root logger
func (d Deps) Logger(component string) *logger.Logger {
	if d.Log != nil {
		l := d.Log.With().Str("component", component).Logger()
		return &l
	}
	return logger.Named(component)
}
