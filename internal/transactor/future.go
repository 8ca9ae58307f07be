package transactor

import (
	"context"
	"runtime/debug"
	"sync"
)

// Future is the eventual result of a unit of work. It completes exactly
// once, with either a value or an error.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future that is already resolved.
func Completed[T any](value T, err error) *Future[T] {
	f := newFuture[T]()
	f.complete(value, err)
	return f
}

func (f *Future[T]) complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has a result.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Ready reports whether the result is available without blocking.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future completes or ctx is done. Giving up on
// ctx does not stop the underlying unit of work.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		// Prefer a result that raced with cancellation.
		select {
		case <-f.done:
			return f.value, f.err
		default:
		}
		var zero T
		return zero, ctx.Err()
	}
}

// Map returns a future for fn applied to f's value. fn runs only when f
// succeeds; f's error is passed through unchanged otherwise. A panic in fn
// fails the future with a *PanicError.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := newFuture[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			out.complete(zero, f.err)
			return
		}
		defer func() {
			if r := recover(); r != nil {
				var zero U
				out.complete(zero, &PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		out.complete(fn(f.value))
	}()
	return out
}
