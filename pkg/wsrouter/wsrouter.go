package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, input T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler receives handler errors; returning a non-nil error stops ServeConn.
type ErrorHandler func(ctx context.Context, conn *websocket.Conn, err error) error

type WSRouter struct {
	routes      map[string]HandlerFunc[json.RawMessage]
	middlewares []Middleware
	onError     ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes: make(map[string]HandlerFunc[json.RawMessage]),
		onError: func(_ context.Context, _ *websocket.Conn, err error) error {
			return err
		},
	}
}

func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) OnError(h ErrorHandler) {
	r.onError = h
}

// Handle registers handler for messageType, decoding the payload into T.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		var input T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &input); err != nil {
				return fmt.Errorf("failed to decode %s payload: %w", messageType, err)
			}
		}

		var next HandlerFunc[any] = func(ctx context.Context, conn *websocket.Conn, _ any) error {
			return handler(ctx, conn, input)
		}
		for i := len(r.middlewares) - 1; i >= 0; i-- {
			next = r.middlewares[i](next)
		}

		return next(ctx, conn, input)
	}
}

// ServeConn reads messages until the connection fails and dispatches each
// to its handler.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			if err := r.onError(ctx, conn, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)); err != nil {
				return err
			}
			continue
		}

		if err := handler(context.WithValue(ctx, messageTypeKey, msg.Type), conn, msg.Payload); err != nil {
			if err := r.onError(ctx, conn, err); err != nil {
				return err
			}
		}
	}
}
