package widget

import (
	"context"

	"github.com/vovakirdan/wirechat-widget/internal/proto"
)

// Conn is one open duplex channel to the chat backend.
// Read and Write may be called concurrently; Close unblocks both.
type Conn interface {
	Read(ctx context.Context) (proto.Frame, error)
	Write(ctx context.Context, f proto.Frame) error
	Close() error
}

// Dialer opens channels. The context bounds the connection attempt only.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, endpoint string) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (Conn, error) {
	return f(ctx, endpoint)
}
