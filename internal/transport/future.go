package transport

import (
	"context"
	"sync"
)

// Result is the outcome of a unicast exchange.
type Result struct {
	// Response is nil when no matching response arrived before the transport gave up.
	Response Command
}

// IsSuccess reports whether a response arrived and is not an error response.
func (r Result) IsSuccess() bool {
	if r.Response == nil {
		return false
	}
	if e, ok := r.Response.(interface{ IsErrorResponse() bool }); ok && e.IsErrorResponse() {
		return false
	}
	return true
}

// IsTimeout reports whether the exchange ended without a response.
func (r Result) IsTimeout() bool {
	return r.Response == nil
}

// Future is a handle to a Result that resolves exactly once.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result Result
	err    error
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Failed returns a future already resolved with err.
func Failed(err error) *Future {
	f := NewFuture()
	f.Fail(err)
	return f
}

// Complete resolves the future with r. It reports false if the future was already resolved.
func (f *Future) Complete(r Result) bool {
	return f.resolve(r, nil)
}

// Fail resolves the future with err. It reports false if the future was already resolved.
func (f *Future) Fail(err error) bool {
	return f.resolve(Result{}, err)
}

func (f *Future) resolve(r Result, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.result = r
		f.err = err
		resolved = true
		close(f.done)
	})
	return resolved
}

// Done is closed once the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future resolves or ctx is done. A done ctx returns
// ctx.Err() and leaves the future unresolved.
func (f *Future) Get(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
