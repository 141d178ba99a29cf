// Package callback defines the erased one-shot invocable that is the
// unit of scheduled work throughout cuti, mirroring the role of
// callback_t in the original cuti library.
package callback

// Func is a one-shot, erased nullary invocable. The nil Func is the
// "null callback" of spec.md §4.1, distinct from any real callback.
//
// A Func is consumed by invocation: once a registry (the selector, the
// scheduler's alarm heap, an async buffer) has handed a Func to its
// caller, that registry clears its own copy so the callback cannot be
// reached, let alone invoked, a second time through it. Go has no
// linear-type enforcement for this, so the single-invocation rule is a
// documented contract rather than a compile-time guarantee: callers
// must not retain and re-invoke a Func obtained from a cancel or fire
// path.
type Func func()

// Invoke calls f, which must be non-nil; invoking the null callback is
// a contract violation and panics via the normal nil-func-call panic.
func (f Func) Invoke() {
	f()
}

// IsNil reports whether f is the null callback.
func (f Func) IsNil() bool {
	return f == nil
}

// Take returns f and resets *f to nil, transferring ownership of the
// callback to the caller in a single step. This mirrors the source's
// "cancel returns the previously armed callback" idiom
// (async_inbuf_t::cancel_when_readable) using move-out-by-assignment
// instead of shared_ptr aliasing.
func Take(f *Func) Func {
	result := *f
	*f = nil
	return result
}
