package repokit

import (
	"context"
	"fmt"
	"time"
)

// BeginHook runs first thing inside every transaction
type BeginHook func(ctx context.Context, q Queryer) error

// WithBeginHooks returns inner with hooks run at the start of each Tx.
// Statements outside Tx go straight to inner
func WithBeginHooks(inner TxRunner, hooks ...BeginHook) TxRunner {
	if len(hooks) == 0 {
		return inner
	}
	return hookedTx{TxRunner: inner, hooks: hooks}
}

type hookedTx struct {
	TxRunner
	hooks []BeginHook
}

func (h hookedTx) Tx(ctx context.Context, fn func(q Queryer) error) error {
	return h.TxRunner.Tx(ctx, func(q Queryer) error {
		for _, hook := range h.hooks {
			if err := hook(ctx, q); err != nil {
				return err
			}
		}
		return fn(q)
	})
}

// setLocal scopes a millisecond server setting to the transaction. d <= 0 leaves it alone
func setLocal(name string, d time.Duration) BeginHook {
	return func(ctx context.Context, q Queryer) error {
		if d <= 0 {
			return nil
		}
		_, err := q.Exec(ctx, fmt.Sprintf("SET LOCAL %s = %d", name, d.Milliseconds()))
		return err
	}
}

// StatementTimeout bounds each statement of the transaction
func StatementTimeout(d time.Duration) BeginHook { return setLocal("statement_timeout", d) }

// LockTimeout bounds each wait for a lock, advisory key locks included
func LockTimeout(d time.Duration) BeginHook { return setLocal("lock_timeout", d) }
