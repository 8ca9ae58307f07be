// Package transactor runs blocking database work off the request path.
//
// Every unit of work gets its own session and its own transaction and runs
// on a bounded set of workers sized to the connection pool, so slow storage
// never ties up the goroutines serving HTTP. Callers get a Future back
// immediately and await it when they need the result.
//
// Lifecycle of one unit of work, strictly in this order:
//
//	acquire session -> begin -> work -> commit | rollback -> release
package transactor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/deppfellow/users-service/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is used when Options.Workers is not set.
const DefaultWorkers = 10

// ErrClosed is returned by futures submitted after Close.
var ErrClosed = errors.New("transactor: executor closed")

// Session is one independent handle to the store, used for exactly one
// unit of work. *pgxpool.Conn implements it.
type Session interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
}

// SessionFactory hands out a fresh Session per call.
type SessionFactory interface {
	Session(ctx context.Context) (Session, error)
}

// PoolSessions acquires a dedicated pooled connection per session.
type PoolSessions struct {
	Pool *pgxpool.Pool
}

func (p PoolSessions) Session(ctx context.Context) (Session, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// UnitOfWork is caller-defined data access against a single transaction.
// It must not touch the store through anything but tx.
type UnitOfWork[T any] func(ctx context.Context, tx pgx.Tx) (T, error)

// Done is the value of futures that only signal completion.
type Done struct{}

// PanicError carries a panic raised inside a unit of work.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("unit of work panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type Options struct {
	// Workers bounds how many units of work hold a session at once.
	Workers int

	// Logger is used when the submitting context carries no logger.
	Logger *zerolog.Logger
}

// Executor runs units of work on its bounded worker pool.
type Executor struct {
	sessions SessionFactory
	sem      *semaphore.Weighted
	workers  int
	log      zerolog.Logger

	mu       sync.RWMutex
	closed   bool
	inFlight sync.WaitGroup
}

func New(sessions SessionFactory, opts Options) *Executor {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Executor{
		sessions: sessions,
		sem:      semaphore.NewWeighted(int64(workers)),
		workers:  workers,
		log:      log.With().Str("component", "transactor").Logger(),
	}
}

// Workers returns the size of the worker pool.
func (ex *Executor) Workers() int {
	return ex.workers
}

// Run submits work and returns its future without waiting for a worker.
//
// The work runs with ctx's values but not its cancellation: once submitted
// it always runs to commit or rollback. operation names the work in logs
// and metrics.
func Run[T any](ctx context.Context, ex *Executor, operation string, work UnitOfWork[T]) *Future[T] {
	f := newFuture[T]()

	ex.mu.RLock()
	if ex.closed {
		ex.mu.RUnlock()
		metrics.RecordRejectedUnitOfWork(operation)
		var zero T
		f.complete(zero, ErrClosed)
		return f
	}
	ex.inFlight.Add(1)
	ex.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	submitted := time.Now()

	go func() {
		defer ex.inFlight.Done()

		// ctx cannot be cancelled, so Acquire only returns once a slot is free.
		_ = ex.sem.Acquire(ctx, 1)
		defer ex.sem.Release(1)

		metrics.RecordUnitOfWorkWait(operation, time.Since(submitted).Seconds())
		metrics.UnitOfWorkInFlight.Inc()
		defer metrics.UnitOfWorkInFlight.Dec()

		start := time.Now()
		value, outcome, err := execute(ctx, ex, work)
		duration := time.Since(start)

		metrics.RecordUnitOfWork(operation, outcome, duration.Seconds())

		event := ex.logger(ctx).Debug()
		if err != nil {
			event = event.Err(err)
		}
		event.
			Str("operation", operation).
			Str("outcome", outcome).
			Dur("duration", duration).
			Msg("unit of work finished")

		f.complete(value, err)
	}()

	return f
}

// execute owns the session for one unit of work. The session is released
// before execute returns, so it is already back in the pool by the time
// the future completes.
func execute[T any](ctx context.Context, ex *Executor, work UnitOfWork[T]) (T, string, error) {
	var zero T

	session, err := ex.sessions.Session(ctx)
	if err != nil {
		return zero, metrics.OutcomeFailed, err
	}
	defer session.Release()

	tx, err := session.Begin(ctx)
	if err != nil {
		return zero, metrics.OutcomeFailed, err
	}

	value, err := call(ctx, tx, work)
	if err != nil {
		// The original failure wins over anything rollback reports.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			ex.logger(ctx).Debug().Err(rbErr).Msg("rollback failed after unit of work error")
		}
		return zero, metrics.OutcomeRolledBack, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, metrics.OutcomeFailed, err
	}

	return value, metrics.OutcomeCommitted, nil
}

func call[T any](ctx context.Context, tx pgx.Tx, work UnitOfWork[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return work(ctx, tx)
}

// Close stops accepting work and waits until every submitted unit of work
// has finished, or ctx is done.
func (ex *Executor) Close(ctx context.Context) error {
	ex.mu.Lock()
	ex.closed = true
	ex.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		ex.inFlight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		ex.log.Info().Msg("transactor drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ex *Executor) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &ex.log
}
