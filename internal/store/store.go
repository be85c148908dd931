package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a message does not exist or was already removed.
var ErrNotFound = errors.New("not found")

// Message is a persisted chat message or admin notice.
type Message struct {
	ID         string
	AuthorID   string
	AuthorName string
	Body       string
	Kind       string
	IsNotice   bool
	CreatedAt  time.Time
}

// MessageStore handles transcript persistence.
type MessageStore interface {
	// SaveMessage persists a message. The caller assigns the ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListRecent returns up to limit visible messages in chronological order.
	ListRecent(ctx context.Context, limit int) ([]*Message, error)

	// DeleteMessage hides one message. Returns ErrNotFound when absent.
	DeleteMessage(ctx context.Context, id string) error

	// ClearMessages hides every visible message and notice and returns how many were hidden.
	ClearMessages(ctx context.Context) (int, error)

	// PurgeMessages permanently removes every stored row and returns how many were removed.
	PurgeMessages(ctx context.Context) (int, error)
}

// Store combines all storage capabilities.
type Store interface {
	MessageStore
	Close() error
}
