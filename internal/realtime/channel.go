package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultSeenCapacity     = 4096
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// StatusChange carries the cause of a transition to Disconnected, if any.
type StatusChange struct {
	Status Status
	Err    error
}

type Config struct {
	Transport        Transport
	OriginUserID     string
	Clock            clockwork.Clock
	HandshakeTimeout time.Duration
	SeenCapacity     int
}

// Channel delivers sync events between the local session and a hub. It
// never buffers outbound events: publishing while not connected fails.
type Channel struct {
	transport        Transport
	origin           string
	clock            clockwork.Clock
	handshakeTimeout time.Duration
	seen             *lru.Cache[string, struct{}]

	mu         sync.Mutex
	status     Status
	conn       Conn
	gen        uint64
	readCancel context.CancelFunc
	lastStamp  int64
	subs       map[int]func(Event)
	statusSubs map[int]func(StatusChange)
	nextSubID  int
	closed     bool
}

func NewChannel(cfg Config) (*Channel, error) {
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.OriginUserID == "" {
		return nil, errors.New("origin user id is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.SeenCapacity <= 0 {
		cfg.SeenCapacity = DefaultSeenCapacity
	}

	seen, err := lru.New[string, struct{}](cfg.SeenCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen cache: %w", err)
	}

	return &Channel{
		transport:        cfg.Transport,
		origin:           cfg.OriginUserID,
		clock:            cfg.Clock,
		handshakeTimeout: cfg.HandshakeTimeout,
		seen:             seen,
		status:           StatusDisconnected,
		subs:             make(map[int]func(Event)),
		statusSubs:       make(map[int]func(StatusChange)),
	}, nil
}

type dialResult struct {
	conn    Conn
	welcome Welcome
	err     error
}

// Connect dials the transport and completes the handshake. If that takes
// longer than the handshake timeout the channel returns to Disconnected with
// a HANDSHAKE_TIMEOUT error. Cancelling ctx aborts with TRANSPORT_LOST
// wrapping ctx.Err().
func (c *Channel) Connect(ctx context.Context) (Welcome, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Welcome{}, ErrClosed
	}
	if c.status != StatusDisconnected {
		c.mu.Unlock()
		return Welcome{}, ErrAlreadyConnected
	}
	c.status = StatusConnecting
	c.gen++
	gen := c.gen
	timer := c.clock.NewTimer(c.handshakeTimeout)
	c.mu.Unlock()
	defer timer.Stop()

	c.emitStatus(StatusChange{Status: StatusConnecting})
	slog.DebugContext(ctx, "channel connecting", "origin", c.origin)

	dialCtx, cancelDial := context.WithCancel(ctx)
	defer cancelDial()

	results := make(chan dialResult, 1)
	go func() {
		conn, err := c.transport.Dial(dialCtx)
		if err != nil {
			results <- dialResult{err: err}
			return
		}
		welcome, err := conn.Handshake(dialCtx)
		if err != nil {
			conn.Close()
			results <- dialResult{err: err}
			return
		}
		results <- dialResult{conn: conn, welcome: welcome}
	}()

	var (
		r       dialResult
		failure error
	)
	select {
	case r = <-results:
		if r.err != nil {
			failure = &ChannelError{Kind: TransportLost, Err: r.err}
		}
	case <-timer.Chan():
		failure = &ChannelError{Kind: HandshakeTimeout}
	case <-ctx.Done():
		failure = &ChannelError{Kind: TransportLost, Err: ctx.Err()}
	}

	if failure != nil {
		cancelDial()
		go drainDial(results)
		c.mu.Lock()
		if c.gen == gen && c.status == StatusConnecting {
			c.status = StatusDisconnected
		}
		c.mu.Unlock()

		slog.WarnContext(ctx, "channel connect failed", "origin", c.origin, "error", failure)
		c.emitStatus(StatusChange{Status: StatusDisconnected, Err: failure})
		return Welcome{}, failure
	}

	c.mu.Lock()
	if c.gen != gen || c.closed {
		c.mu.Unlock()
		r.conn.Close()
		return Welcome{}, &ChannelError{Kind: TransportLost, Err: errors.New("channel was closed while connecting")}
	}
	readCtx, cancelRead := context.WithCancel(context.Background())
	c.conn = r.conn
	c.readCancel = cancelRead
	c.status = StatusConnected
	c.mu.Unlock()

	slog.InfoContext(ctx, "channel connected", "origin", c.origin, "member_id", r.welcome.MemberID)
	c.emitStatus(StatusChange{Status: StatusConnected})

	go c.readLoop(readCtx, gen, r.conn)
	return r.welcome, nil
}

func drainDial(results <-chan dialResult) {
	if r := <-results; r.conn != nil {
		r.conn.Close()
	}
}

func (c *Channel) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		e, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.lost(gen, err)
			return
		}
		c.deliver(e)
	}
}

// deliver hands e to every subscriber at most once, dropping redelivered ids.
func (c *Channel) deliver(e Event) {
	if e.ID == "" || e.Type.Validate() != nil {
		slog.Warn("channel dropped malformed event", "id", e.ID, "type", e.Type)
		return
	}
	if seen, _ := c.seen.ContainsOrAdd(e.ID, struct{}{}); seen {
		slog.Debug("channel dropped duplicate event", "id", e.ID, "type", e.Type)
		return
	}

	c.mu.Lock()
	c.lastStamp = max(c.lastStamp, e.Timestamp)
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

func (c *Channel) lost(gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen || c.status != StatusConnected {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.mu.Unlock()

	err := &ChannelError{Kind: TransportLost, Err: cause}
	slog.Warn("channel transport lost", "origin", c.origin, "error", cause)
	c.emitStatus(StatusChange{Status: StatusDisconnected, Err: err})
}

func (c *Channel) teardownLocked() {
	if c.readCancel != nil {
		c.readCancel()
		c.readCancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
	c.status = StatusDisconnected
}

// Tick advances the logical clock and returns the new stamp:
// max(last+1, wall clock millis).
func (c *Channel) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tickLocked()
}

func (c *Channel) tickLocked() int64 {
	c.lastStamp = max(c.lastStamp+1, c.clock.Now().UnixMilli())
	return c.lastStamp
}

// Publish sends a locally originated event. Missing id and timestamp are
// filled in and the origin is always the local user. The returned event is
// what was sent.
func (c *Channel) Publish(ctx context.Context, e Event) (Event, error) {
	if err := e.Type.Validate(); err != nil {
		return Event{}, err
	}

	c.mu.Lock()
	if c.status != StatusConnected {
		c.mu.Unlock()
		return Event{}, &ChannelError{Kind: NotConnected}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = c.tickLocked()
	}
	e.OriginUserID = c.origin
	conn, gen := c.conn, c.gen
	c.mu.Unlock()

	// the hub may echo our own events back
	c.seen.Add(e.ID, struct{}{})

	if err := conn.Send(ctx, e); err != nil {
		c.lost(gen, err)
		return Event{}, &ChannelError{Kind: TransportLost, Err: err}
	}
	return e, nil
}

// Disconnect closes the connection. It is a no-op when already disconnected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.status == StatusDisconnected {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.mu.Unlock()

	c.emitStatus(StatusChange{Status: StatusDisconnected})
}

// Close disconnects and drops every subscriber.
func (c *Channel) Close() {
	c.Disconnect()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	clear(c.subs)
	clear(c.statusSubs)
}

func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

func (c *Channel) OriginUserID() string {
	return c.origin
}

// Subscribe registers fn for inbound events. Events are delivered from a
// single goroutine in arrival order.
func (c *Channel) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Channel) SubscribeStatus(fn func(StatusChange)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.statusSubs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.statusSubs, id)
	}
}

func (c *Channel) emitStatus(change StatusChange) {
	c.mu.Lock()
	subs := make([]func(StatusChange), 0, len(c.statusSubs))
	for _, fn := range c.statusSubs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
}
