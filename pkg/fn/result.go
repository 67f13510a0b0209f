// Package fn holds the small functional toolkit the engine packages build on:
// a Result type, composable pipeline stages, bounded fan-out and retries.
package fn

// Result carries either a value or the error that prevented producing it.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] {
	return Result[T]{val: v, ok: true}
}

// Err wraps an error.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

func (r Result[T]) IsOk() bool  { return r.ok }
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the value and error pair.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// FromPair lifts a (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}
