package feed

import (
	"context"
	"errors"

	"github.com/andres10976/certwatch/internal/model"
)

var (
	// ErrTransportUnavailable means no usable feed transport is configured.
	// It is a startup condition, never retried.
	ErrTransportUnavailable = errors.New("feed transport unavailable")

	// ErrStreamFailed wraps a transport error that ended the stream.
	ErrStreamFailed = errors.New("feed stream failed")

	// ErrMalformedEvent marks a single message the transport could not decode.
	// The stream remains usable after it.
	ErrMalformedEvent = errors.New("malformed feed event")
)

// Stream is a lazy, unbounded, non-restartable sequence of events.
//
// Next blocks until the next event arrives. It returns io.EOF when the
// upstream closed the stream in an orderly way, ctx.Err() when ctx is done,
// an error wrapping ErrMalformedEvent for an undecodable message (the caller
// may keep reading), and any other error when the transport broke.
type Stream interface {
	Next(ctx context.Context) (model.CertificateEvent, error)
	Close() error
}

// Dialer establishes a Stream.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Stream, error)

func (f DialerFunc) Dial(ctx context.Context) (Stream, error) { return f(ctx) }
