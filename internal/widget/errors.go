package widget

import (
	"errors"
	"fmt"
)

// Validation errors are local guard rejections. They never reach the network
// and are not meant to be shown as error banners.
var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrNoIdentity    = errors.New("not signed in")
	ErrNotConnected  = errors.New("chat is not connected")
	ErrAlreadyInChat = errors.New("already in chat")
	ErrNotInChat     = errors.New("not in chat")
)

// Moderation guard rejections.
var (
	ErrNotAdmin     = errors.New("admin role required")
	ErrNotConfirmed = errors.New("action not confirmed")
)

// ErrClosed is returned once the widget loop has stopped.
var ErrClosed = errors.New("widget stopped")

// IsValidation reports whether err is a local guard rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrNoIdentity) ||
		errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrAlreadyInChat) ||
		errors.Is(err, ErrNotInChat)
}

// ModerationError is a server-side rejection of a moderation action that
// passed the local role gate.
type ModerationError struct {
	Action  ModerationAction
	Message string
}

func (e *ModerationError) Error() string {
	if e.Action == "" {
		return e.Message
	}
	return fmt.Sprintf("%s rejected: %s", e.Action, e.Message)
}
