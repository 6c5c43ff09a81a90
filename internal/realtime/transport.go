package realtime

import (
	"context"
	"encoding/json"

	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/presence"
)

// Transport opens connections to a sync hub.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one connection. Send must be safe to call concurrently with Receive.
type Conn interface {
	Handshake(ctx context.Context) (Welcome, error)
	Send(ctx context.Context, e Event) error
	Receive(ctx context.Context) (Event, error)
	Close() error
}

// Welcome is the hub's reply to a completed handshake.
type Welcome struct {
	MemberID string           `json:"member_id"`
	Presence []presence.Entry `json:"presence"`
	Comments []domain.Comment `json:"comments"`
}

// Frame types spoken between wstransport and the hub.
const (
	FrameHello   = "HELLO"
	FrameWelcome = "WELCOME"
	FrameEvent   = "EVENT"
	FrameAlive   = "ALIVE"
	FrameError   = "ERROR"
)

type HelloPayload struct {
	Token string `json:"token"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Frame is the envelope of every websocket message.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
