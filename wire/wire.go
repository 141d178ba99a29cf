// Package wire specifies the hookup contract between a parser or
// serializer and the I/O core, per spec.md §6. It does not implement
// any concrete wire format; that is explicitly out of scope for this
// module.
package wire

import (
	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/iobuf"
)

// ResultSink receives the outcome of a parse: exactly one of Value or
// Fail is called, never both, before the parser is reused or
// discarded.
type ResultSink[T any] interface {
	// Value is called once with the fully parsed value.
	Value(v T)

	// Fail is called once with a tagged failure kind (see the root
	// package's Kind) and a free-form message.
	Fail(kind int, message string)
}

// Parser drives an iobuf.InBuf forward until it can produce a result,
// registering itself via InBuf.CallWhenReadable whenever it cannot
// make progress without more input.
type Parser[T any] interface {
	// Start begins or resumes parsing from in, reporting to sink once
	// a value or a failure is available. Start may call back into sink
	// synchronously if the buffer already holds enough input.
	Start(in *iobuf.InBuf, sink ResultSink[T])
}

// Serializer is the mirror image of Parser, driving an iobuf.OutBuf.
type Serializer[T any] interface {
	// Start begins or resumes serializing v into out, invoking done
	// once every byte has been handed to the buffer (not necessarily
	// flushed to the sink yet; Drain/CallWhenWritable on the OutBuf
	// handles that).
	Start(out *iobuf.OutBuf, v T, done callback.Func)
}
