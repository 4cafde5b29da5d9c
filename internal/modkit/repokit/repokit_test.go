package repokit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"socialsync/internal/platform/testkit"
)

type tag struct{}

func (tag) String() string      { return "OK" }
func (tag) RowsAffected() int64 { return 1 }

// fakeTx records statements and runs Tx inline on itself
type fakeTx struct {
	sqls []string
	txs  int
	fail string
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	if f.fail != "" && strings.Contains(sql, f.fail) {
		return nil, errors.New("exec failed")
	}
	return tag{}, nil
}
func (f *fakeTx) Query(context.Context, string, ...any) (Rows, error) { return nil, nil }
func (f *fakeTx) QueryRow(context.Context, string, ...any) Row        { return nil }
func (f *fakeTx) Tx(_ context.Context, fn func(Queryer) error) error {
	f.txs++
	return fn(f)
}

type repo struct{ q Queryer }

func TestBindTx(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{}
	var got repo
	err := BindTx(context.Background(), tx, BindFunc[repo](func(q Queryer) repo { return repo{q: q} }), func(r repo) error {
		got = r
		return nil
	})
	if err != nil || tx.txs != 1 || got.q != tx {
		t.Fatalf("err=%v txs=%d", err, tx.txs)
	}
}

func TestMustBind_NilPanics(t *testing.T) {
	t.Parallel()
	testkit.MustPanic(t, func() {
		MustBind[repo](BindFunc[repo](func(q Queryer) repo { return repo{q: q} }), nil)
	})
}

func TestWithBeginHooks(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{}
	hooked := WithBeginHooks(tx, StatementTimeout(1500*time.Millisecond), LockTimeout(0), LockTimeout(2*time.Second))
	err := WithTx(context.Background(), hooked, func(q Queryer) error {
		_, err := q.Exec(context.Background(), "INSERT INTO posts VALUES (1)")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hooked.Exec(context.Background(), "SELECT 1"); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"SET LOCAL statement_timeout = 1500",
		"SET LOCAL lock_timeout = 2000",
		"INSERT INTO posts VALUES (1)",
		"SELECT 1",
	}
	testkit.MustEqual(t, want, tx.sqls)

	if WithBeginHooks(tx) != TxRunner(tx) {
		t.Fatal("no hooks should return inner")
	}
}

func TestWithBeginHooks_HookErrorStops(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{fail: "statement_timeout"}
	called := false
	err := WithBeginHooks(tx, StatementTimeout(time.Second)).Tx(context.Background(), func(Queryer) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("err=%v called=%v", err, called)
	}
}

type guardFunc func(context.Context) error

func (g guardFunc) Guard(ctx context.Context) error { return g(ctx) }

func TestMustGuard(t *testing.T) {
	t.Parallel()

	testkit.MustNotPanic(t, func() {
		MustGuard(context.Background(), guardFunc(func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("no deadline")
			}
			return nil
		}))
	})
	testkit.MustPanic(t, func() {
		MustGuard(context.Background(), guardFunc(func(context.Context) error { return errors.New("down") }))
	})
}
