// Package fetch wraps the data providers in per-source failure boundaries
// and memoizes their successful results.
package fetch

// Result is the outcome of one fetcher call: either Available with a payload
// or Unavailable with a reason. It never carries an error past the boundary.
type Result[T any] struct {
	Value  T      `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
	ok     bool
}

// Available wraps a successful payload.
func Available[T any](v T) Result[T] {
	return Result[T]{Value: v, ok: true}
}

// Unavailable records why a source produced nothing.
func Unavailable[T any](reason string) Result[T] {
	if reason == "" {
		reason = "unavailable"
	}
	return Result[T]{Reason: reason}
}

// IsAvailable reports whether the fetch succeeded.
func (r Result[T]) IsAvailable() bool { return r.ok }

// Get returns the payload and whether it is available.
func (r Result[T]) Get() (T, bool) { return r.Value, r.ok }
