package hub

import "github.com/vovakirdan/wirechat-widget/internal/identity"

const (
	commandBuffer = 16
	eventBuffer   = 64
)

// Client is one connected socket as seen by the hub.
type Client struct {
	ID string
	// Identity is nil for anonymous sockets, which may read but not post.
	Identity *identity.Identity
	Commands chan *Command
	Events   chan *Event

	done       chan struct{}
	registered bool
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, ident *identity.Identity) *Client {
	return &Client{
		ID:       id,
		Identity: ident,
		Commands: make(chan *Command, commandBuffer),
		Events:   make(chan *Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

// Name returns the display name, or the socket id for anonymous clients.
func (c *Client) Name() string {
	if c.Identity == nil {
		return c.ID
	}
	return c.Identity.Name()
}

// send delivers an event without blocking the hub.
func (c *Client) send(ev *Event) {
	select {
	case c.Events <- ev:
	default:
		// Drop if slow consumer.
	}
}
