package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memDB emulates the job_locks statements.
type memDB struct {
	mu    sync.Mutex
	now   time.Time
	locks map[string]memLock
}

type memLock struct {
	owner   string
	expires time.Time
}

func newMemDB() *memDB {
	return &memDB{now: time.Unix(0, 0), locks: make(map[string]memLock)}
}

type row struct {
	key string
	err error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.key
	return nil
}

func (d *memDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.mu.Lock()
	defer d.mu.Unlock()

	key, owner, ttl := args[0].(string), args[1].(string), args[2].(int64)
	cur, held := d.locks[key]
	switch sql {
	case tryAcquireSQL:
		if held && cur.owner != owner && !cur.expires.Before(d.now) {
			return row{err: pgx.ErrNoRows}
		}
	case renewSQL:
		if !held || cur.owner != owner {
			return row{err: pgx.ErrNoRows}
		}
	}
	d.locks[key] = memLock{owner: owner, expires: d.now.Add(time.Duration(ttl) * time.Millisecond)}
	return row{key: key}
}

func (d *memDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key, owner := args[0].(string), args[1].(string)
	if cur, ok := d.locks[key]; ok && cur.owner == owner {
		delete(d.locks, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func (d *memDB) advance(dur time.Duration) {
	d.mu.Lock()
	d.now = d.now.Add(dur)
	d.mu.Unlock()
}

func TestAcquireBusy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := New(newMemDB())

	lease, err := c.Acquire(ctx, JobKey("a"), Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := c.Acquire(ctx, JobKey("a"), Options{TTL: time.Minute}); !errors.Is(err, ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
	if _, err := c.Acquire(ctx, JobKey("b"), Options{TTL: time.Minute}); err != nil {
		t.Fatalf("other key: %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if lease.Context.Err() == nil {
		t.Fatal("lease context should be canceled after release")
	}
	if _, err := c.Acquire(ctx, JobKey("a"), Options{TTL: time.Minute}); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestAcquireExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newMemDB()
	c := New(db)

	if _, err := c.Acquire(ctx, "k", Options{TTL: time.Minute, RenewEvery: time.Hour}); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	db.advance(2 * time.Minute)
	if _, err := c.Acquire(ctx, "k", Options{TTL: time.Minute}); err != nil {
		t.Fatalf("expired lease should be taken over: %v", err)
	}
}

func TestAcquireWaitHonorsContext(t *testing.T) {
	t.Parallel()

	c := New(newMemDB())
	if _, err := c.Acquire(context.Background(), "k", Options{TTL: time.Minute}); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Acquire(ctx, "k", Options{TTL: time.Minute, Wait: true, WaitInterval: 10 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
}

func TestWithLease(t *testing.T) {
	t.Parallel()

	db := newMemDB()
	c := New(db)
	ran := false
	err := c.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		ran = true
		if _, err := c.Acquire(ctx, "k", Options{}); !errors.Is(err, ErrBusy) {
			t.Errorf("got %v, want ErrBusy while held", err)
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("got %v, ran %v", err, ran)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.locks) != 0 {
		t.Fatalf("lock not released: %v", db.locks)
	}
}

func TestAcquireEmptyKey(t *testing.T) {
	t.Parallel()

	if _, err := New(newMemDB()).Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	o := Options{TTL: 10 * time.Second, RenewEvery: time.Minute}.withDefaults()
	if o.RenewEvery != 5*time.Second {
		t.Fatalf("got %v, want 5s", o.RenewEvery)
	}
	if o.WaitInterval != DefaultWaitInterval {
		t.Fatalf("got %v", o.WaitInterval)
	}
	if d := (Options{}).withDefaults(); d.TTL != DefaultTTL {
		t.Fatalf("got %v", d.TTL)
	}
}
