package api

// Future is a write-once result container. Listeners added after
// completion are scheduled immediately, preserving addition order; those
// added before completion run, in addition order, once the Promise
// backing this Future completes — always on the Executor named by
// Executor().
type Future interface {
	// IsDone reports whether the future has completed (success, failure
	// or cancellation).
	IsDone() bool
	// IsSuccess reports whether the future completed without error.
	IsSuccess() bool
	// IsCancelled reports whether the future was cancelled.
	IsCancelled() bool
	// Cause returns the failure reason, or nil if successful/incomplete.
	Cause() error
	// Result returns the success value, or nil if failed/incomplete.
	Result() any
	// AddListener registers fn to run on Executor() once this future
	// completes.
	AddListener(fn func(Future)) Future
	// Await blocks the calling goroutine until the future completes.
	Await() Future
	// Executor returns the executor listeners run on.
	Executor() Executor
	// Cancel completes the future as cancelled if it is still
	// incomplete, reporting whether it did. It does not stop or skip
	// the operation backing the future; that work still runs.
	Cancel() bool
}

// Promise is the writable side of a Future: exactly one of Success,
// Failure or Cancel may ever take effect: subsequent calls are no-ops.
type Promise interface {
	Future
	// Success completes the promise successfully with v.
	Success(v any) bool
	// Failure completes the promise with err.
	Failure(err error) bool
}
