package controller

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/review/internal/realtime"
	"github.com/sharetube/review/internal/service/review"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type EmptyInput struct{}

func (c controller) handleAlive(ctx context.Context, conn *websocket.Conn, _ EmptyInput) error {
	if err := c.reviewService.Touch(ctx, conn); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}

	return nil
}

func (c controller) handleEvent(ctx context.Context, conn *websocket.Conn, input realtime.Event) error {
	b, err := c.reviewService.HandleEvent(ctx, &review.HandleEventParams{
		Conn:  conn,
		Event: input,
	})
	if err != nil {
		return fmt.Errorf("failed to handle event: %w", err)
	}

	c.broadcast(ctx, b)
	return nil
}

// handleWSError reports the failure to the sender and keeps the connection open.
func (c controller) handleWSError(ctx context.Context, conn *websocket.Conn, err error) error {
	c.logger.InfoContext(ctx, "websocket message failed", "error", err)

	if err := c.connWriter.Write(conn, &Output{
		Type:    realtime.FrameError,
		Payload: realtime.ErrorPayload{Message: err.Error()},
	}); err != nil {
		return fmt.Errorf("failed to write error: %w", err)
	}

	return nil
}

func (c controller) broadcast(ctx context.Context, b review.Broadcast) {
	if len(b.Conns) == 0 {
		return
	}

	out := &Output{Type: realtime.FrameEvent, Payload: b.Event}
	for _, conn := range b.Conns {
		if err := c.connWriter.Write(conn, out); err != nil {
			c.logger.InfoContext(ctx, "failed to relay event", "event_id", b.Event.ID, "error", err)
		}
	}
}
