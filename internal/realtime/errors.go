package realtime

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyConnected = errors.New("channel is already connected or connecting")
	ErrClosed           = errors.New("channel is closed")
)

type ChannelErrorKind string

const (
	NotConnected     ChannelErrorKind = "NOT_CONNECTED"
	HandshakeTimeout ChannelErrorKind = "HANDSHAKE_TIMEOUT"
	TransportLost    ChannelErrorKind = "TRANSPORT_LOST"
)

// ChannelError reports a channel failure. All kinds are retryable by
// reconnecting.
type ChannelError struct {
	Kind ChannelErrorKind
	Err  error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channel error %s: %v", e.Kind, e.Err)
	}
	return "channel error " + string(e.Kind)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

func (e *ChannelError) Is(target error) bool {
	t, ok := target.(*ChannelError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
