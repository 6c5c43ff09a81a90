// Package wstransport connects a realtime.Channel to the review hub over a websocket.
package wstransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/review/internal/realtime"
)

const (
	DefaultKeepAlive = 20 * time.Second
	writeTimeout     = 10 * time.Second
)

var ErrRejected = errors.New("hub rejected the connection")

type Transport struct {
	url       string
	token     string
	dialer    *websocket.Dialer
	keepAlive time.Duration
	clock     clockwork.Clock
}

type Option func(*Transport)

func WithDialer(d *websocket.Dialer) Option {
	return func(t *Transport) { t.dialer = d }
}

func WithKeepAlive(d time.Duration) Option {
	return func(t *Transport) { t.keepAlive = d }
}

func WithClock(clock clockwork.Clock) Option {
	return func(t *Transport) { t.clock = clock }
}

// New returns a transport for the hub websocket at url, authenticating
// with a join token issued by the hub.
func New(url, token string, opts ...Option) *Transport {
	t := &Transport{
		url:       url,
		token:     token,
		dialer:    websocket.DefaultDialer,
		keepAlive: DefaultKeepAlive,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Dial(ctx context.Context) (realtime.Conn, error) {
	ws, resp, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %w (status %d)", t.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", t.url, err)
	}

	return &conn{
		ws:        ws,
		token:     t.token,
		keepAlive: t.keepAlive,
		clock:     t.clock,
		done:      make(chan struct{}),
	}, nil
}

type conn struct {
	ws        *websocket.Conn
	token     string
	keepAlive time.Duration
	clock     clockwork.Clock

	// events relayed before WELCOME, handed out by Receive first
	early []realtime.Event

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) Handshake(ctx context.Context) (realtime.Welcome, error) {
	if err := c.writeFrame(ctx, realtime.FrameHello, realtime.HelloPayload{Token: c.token}); err != nil {
		return realtime.Welcome{}, fmt.Errorf("failed to send hello: %w", err)
	}

	stop := c.interruptReadOn(ctx)
	defer stop()

	for {
		var frame realtime.Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return realtime.Welcome{}, ctxErr
			}
			return realtime.Welcome{}, fmt.Errorf("failed to read welcome: %w", err)
		}

		switch frame.Type {
		case realtime.FrameWelcome:
			var welcome realtime.Welcome
			if err := json.Unmarshal(frame.Payload, &welcome); err != nil {
				return realtime.Welcome{}, fmt.Errorf("failed to decode welcome: %w", err)
			}
			if c.keepAlive > 0 {
				go c.keepAliveLoop(c.clock.NewTicker(c.keepAlive))
			}
			return welcome, nil
		case realtime.FrameError:
			return realtime.Welcome{}, rejection(frame.Payload)
		case realtime.FrameEvent:
			var e realtime.Event
			if err := json.Unmarshal(frame.Payload, &e); err != nil {
				return realtime.Welcome{}, fmt.Errorf("failed to decode event: %w", err)
			}
			c.early = append(c.early, e)
		}
	}
}

func (c *conn) Send(ctx context.Context, e realtime.Event) error {
	return c.writeFrame(ctx, realtime.FrameEvent, e)
}

// Receive is called from a single goroutine once the handshake is done.
func (c *conn) Receive(ctx context.Context) (realtime.Event, error) {
	if len(c.early) > 0 {
		e := c.early[0]
		c.early = c.early[1:]
		return e, nil
	}

	stop := c.interruptReadOn(ctx)
	defer stop()

	for {
		var frame realtime.Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return realtime.Event{}, ctxErr
			}
			return realtime.Event{}, fmt.Errorf("failed to read frame: %w", err)
		}

		// ERROR frames after the handshake report a single rejected event.
		if frame.Type != realtime.FrameEvent {
			continue
		}

		var e realtime.Event
		if err := json.Unmarshal(frame.Payload, &e); err != nil {
			return realtime.Event{}, fmt.Errorf("failed to decode event: %w", err)
		}
		return e, nil
	}
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *conn) writeFrame(ctx context.Context, frameType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", frameType, err)
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(realtime.Frame{Type: frameType, Payload: data})
}

// interruptReadOn unblocks a pending read once ctx is done.
func (c *conn) interruptReadOn(ctx context.Context) func() {
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.ws.SetReadDeadline(time.Now())
		case <-finished:
		case <-c.done:
		}
	}()
	return func() { close(finished) }
}

func (c *conn) keepAliveLoop(ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.Chan():
			if err := c.writeFrame(context.Background(), realtime.FrameAlive, struct{}{}); err != nil {
				return
			}
		}
	}
}

func rejection(payload json.RawMessage) error {
	var p realtime.ErrorPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Message == "" {
		return ErrRejected
	}
	return fmt.Errorf("%w: %s", ErrRejected, p.Message)
}

// HubURL builds the websocket url of an asset room from the hub's base http url.
func HubURL(baseURL, assetID string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		baseURL = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		baseURL = "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	return strings.TrimSuffix(baseURL, "/") + "/api/v1/ws/assets/" + assetID
}
