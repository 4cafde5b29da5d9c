package store

import "context"

// RunLocked runs fn in a transaction that first takes a transaction-scoped advisory
// lock on key. Callers holding the same key are serialized until commit or rollback
func RunLocked(ctx context.Context, tx TxRunner, key string, fn func(ctx context.Context, q RowQuerier) error) error {
	return tx.Tx(ctx, func(q RowQuerier) error {
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return err
		}
		return fn(ctx, q)
	})
}
