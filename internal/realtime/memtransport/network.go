// Package memtransport is an in-process sync hub for tests and local demos.
// It relays every sent event to all other connections, like the websocket hub.
package memtransport

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sharetube/review/internal/realtime"
)

var (
	ErrUnreachable = errors.New("network unreachable")
	ErrConnClosed  = errors.New("connection closed")
)

const inboxSize = 256

type Network struct {
	mu            sync.Mutex
	conns         map[*conn]struct{}
	unreachable   bool
	holdHandshake bool
	welcome       realtime.Welcome
	sent          []realtime.Event
}

func NewNetwork() *Network {
	return &Network{conns: make(map[*conn]struct{})}
}

// SetUnreachable makes new dials fail.
func (n *Network) SetUnreachable(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unreachable = v
}

// HoldHandshakes makes handshakes block until their context ends.
func (n *Network) HoldHandshakes(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.holdHandshake = v
}

// SetWelcome sets the snapshot returned by every handshake. MemberID is
// generated per connection when empty.
func (n *Network) SetWelcome(w realtime.Welcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcome = w
}

// Drop closes every open connection, simulating transport loss.
func (n *Network) Drop() {
	n.mu.Lock()
	conns := make([]*conn, 0, len(n.conns))
	for c := range n.conns {
		conns = append(conns, c)
	}
	n.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Inject delivers e to every open connection, as if relayed by the hub.
func (n *Network) Inject(e realtime.Event) {
	n.broadcast(nil, e)
}

// Sent returns every event sent through the network, in order.
func (n *Network) Sent() []realtime.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]realtime.Event(nil), n.sent...)
}

func (n *Network) Conns() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.conns)
}

func (n *Network) Dial(ctx context.Context) (realtime.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.unreachable {
		return nil, ErrUnreachable
	}
	c := &conn{
		network: n,
		inbox:   make(chan realtime.Event, inboxSize),
		done:    make(chan struct{}),
	}
	n.conns[c] = struct{}{}
	return c, nil
}

func (n *Network) broadcast(from *conn, e realtime.Event) {
	n.mu.Lock()
	if from != nil {
		n.sent = append(n.sent, e)
	}
	targets := make([]*conn, 0, len(n.conns))
	for c := range n.conns {
		if c != from {
			targets = append(targets, c)
		}
	}
	n.mu.Unlock()

	for _, c := range targets {
		c.push(e)
	}
}

func (n *Network) remove(c *conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.conns, c)
}

type conn struct {
	network   *Network
	inbox     chan realtime.Event
	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) Handshake(ctx context.Context) (realtime.Welcome, error) {
	c.network.mu.Lock()
	hold := c.network.holdHandshake
	welcome := c.network.welcome
	c.network.mu.Unlock()

	if hold {
		select {
		case <-ctx.Done():
			return realtime.Welcome{}, ctx.Err()
		case <-c.done:
			return realtime.Welcome{}, ErrConnClosed
		}
	}
	if welcome.MemberID == "" {
		welcome.MemberID = uuid.NewString()
	}
	return welcome, nil
}

func (c *conn) Send(ctx context.Context, e realtime.Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.network.broadcast(c, e)
	return nil
}

func (c *conn) Receive(ctx context.Context) (realtime.Event, error) {
	select {
	case e := <-c.inbox:
		return e, nil
	case <-c.done:
		return realtime.Event{}, ErrConnClosed
	case <-ctx.Done():
		return realtime.Event{}, ctx.Err()
	}
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.network.remove(c)
	})
	return nil
}

// push drops the event when the receiver is gone or its inbox is full.
func (c *conn) push(e realtime.Event) {
	select {
	case <-c.done:
	case c.inbox <- e:
	default:
	}
}
