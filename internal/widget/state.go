package widget

// ConnectionState is owned by the connection manager; every other component only reads it.
type ConnectionState int

const (
	// StateDisabled means no channel exists, either because chat is unavailable
	// in this environment or because the widget was closed.
	StateDisabled ConnectionState = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the channel is open and pushes are applied.
	StateConnected
	// StateDisconnected means an open channel dropped and an automatic redial is scheduled.
	StateDisconnected
	// StateErrored means a dial failed; only a manual Retry leaves it.
	StateErrored
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}
