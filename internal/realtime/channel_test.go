package realtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/review/internal/realtime"
	"github.com/sharetube/review/internal/realtime/memtransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type collector struct {
	mu       sync.Mutex
	events   []realtime.Event
	statuses []realtime.StatusChange
}

func (c *collector) onEvent(e realtime.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) onStatus(s realtime.StatusChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, s)
}

func (c *collector) Events() []realtime.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]realtime.Event(nil), c.events...)
}

func (c *collector) Statuses() []realtime.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]realtime.Status, len(c.statuses))
	for i, s := range c.statuses {
		out[i] = s.Status
	}
	return out
}

func (c *collector) LastStatus() realtime.StatusChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.statuses) == 0 {
		return realtime.StatusChange{}
	}
	return c.statuses[len(c.statuses)-1]
}

func newChannel(t *testing.T, network *memtransport.Network, origin string, clock clockwork.Clock) (*realtime.Channel, *collector) {
	t.Helper()
	ch, err := realtime.NewChannel(realtime.Config{
		Transport:    network,
		OriginUserID: origin,
		Clock:        clock,
	})
	require.NoError(t, err)
	t.Cleanup(ch.Close)

	col := &collector{}
	ch.Subscribe(col.onEvent)
	ch.SubscribeStatus(col.onStatus)
	return ch, col
}

func commentEvent(t *testing.T, id string) realtime.Event {
	t.Helper()
	e, err := realtime.NewEvent(realtime.EventCommentDeleted, realtime.CommentDeletedPayload{CommentID: id})
	require.NoError(t, err)
	return e
}

func TestChannel_PublishReachesPeers(t *testing.T) {
	network := memtransport.NewNetwork()
	alice, aliceEvents := newChannel(t, network, "alice", nil)
	bob, bobEvents := newChannel(t, network, "bob", nil)

	_, err := alice.Connect(context.Background())
	require.NoError(t, err)
	_, err = bob.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, realtime.StatusConnected, alice.Status())

	event := commentEvent(t, "c1")
	event.OriginUserID = "mallory"
	sent, err := alice.Publish(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, "alice", sent.OriginUserID)
	assert.Equal(t, event.ID, sent.ID)
	assert.NotZero(t, sent.Timestamp)

	require.Eventually(t, func() bool { return len(bobEvents.Events()) == 1 }, waitFor, tick)
	got := bobEvents.Events()[0]
	assert.Equal(t, sent, got)

	var payload realtime.CommentDeletedPayload
	require.NoError(t, got.Decode(&payload))
	assert.Equal(t, "c1", payload.CommentID)

	assert.Never(t, func() bool { return len(aliceEvents.Events()) > 0 }, 50*time.Millisecond, tick)
	assert.Equal(t, []realtime.Status{realtime.StatusConnecting, realtime.StatusConnected}, aliceEvents.Statuses())
}

func TestChannel_PublishWhileDisconnected(t *testing.T) {
	network := memtransport.NewNetwork()
	ch, _ := newChannel(t, network, "alice", nil)

	_, err := ch.Publish(context.Background(), commentEvent(t, "c1"))
	var chErr *realtime.ChannelError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, realtime.NotConnected, chErr.Kind)
	assert.Empty(t, network.Sent(), "nothing is queued")

	_, err = ch.Connect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, network.Sent())
}

func TestChannel_HandshakeTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	network := memtransport.NewNetwork()
	network.HoldHandshakes(true)
	ch, statuses := newChannel(t, network, "alice", clock)

	errs := make(chan error, 1)
	go func() {
		_, err := ch.Connect(context.Background())
		errs <- err
	}()

	require.Eventually(t, func() bool { return ch.Status() == realtime.StatusConnecting }, waitFor, tick)
	clock.Advance(realtime.DefaultHandshakeTimeout)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, &realtime.ChannelError{Kind: realtime.HandshakeTimeout})
	case <-time.After(waitFor):
		t.Fatal("connect did not time out")
	}
	assert.Equal(t, realtime.StatusDisconnected, ch.Status())
	require.Eventually(t, func() bool { return network.Conns() == 0 }, waitFor, tick)

	last := statuses.LastStatus()
	assert.Equal(t, realtime.StatusDisconnected, last.Status)
	assert.ErrorIs(t, last.Err, &realtime.ChannelError{Kind: realtime.HandshakeTimeout})

	network.HoldHandshakes(false)
	_, err := ch.Connect(context.Background())
	require.NoError(t, err, "a timed out channel can reconnect")
}

func TestChannel_ConnectAbortedByCaller(t *testing.T) {
	network := memtransport.NewNetwork()
	network.HoldHandshakes(true)
	ch, statuses := newChannel(t, network, "alice", clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := ch.Connect(ctx)
		errs <- err
	}()

	require.Eventually(t, func() bool { return ch.Status() == realtime.StatusConnecting }, waitFor, tick)
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, &realtime.ChannelError{Kind: realtime.TransportLost})
		assert.NotErrorIs(t, err, &realtime.ChannelError{Kind: realtime.HandshakeTimeout})
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("connect did not return")
	}
	assert.Equal(t, realtime.StatusDisconnected, ch.Status())
	assert.Equal(t, realtime.StatusDisconnected, statuses.LastStatus().Status)
}

func TestChannel_UnreachableTransport(t *testing.T) {
	network := memtransport.NewNetwork()
	network.SetUnreachable(true)
	ch, _ := newChannel(t, network, "alice", nil)

	_, err := ch.Connect(context.Background())
	assert.ErrorIs(t, err, &realtime.ChannelError{Kind: realtime.TransportLost})
	assert.ErrorIs(t, err, memtransport.ErrUnreachable)
	assert.Equal(t, realtime.StatusDisconnected, ch.Status())
}

func TestChannel_ConnectTwice(t *testing.T) {
	network := memtransport.NewNetwork()
	ch, _ := newChannel(t, network, "alice", nil)

	_, err := ch.Connect(context.Background())
	require.NoError(t, err)
	_, err = ch.Connect(context.Background())
	assert.ErrorIs(t, err, realtime.ErrAlreadyConnected)
}

func TestChannel_DuplicateEventsDeliveredOnce(t *testing.T) {
	network := memtransport.NewNetwork()
	ch, events := newChannel(t, network, "alice", nil)
	_, err := ch.Connect(context.Background())
	require.NoError(t, err)

	event := commentEvent(t, "c1")
	event.OriginUserID = "bob"
	event.Timestamp = 1
	network.Inject(event)
	network.Inject(event)
	other := commentEvent(t, "c2")
	other.OriginUserID = "bob"
	network.Inject(other)

	require.Eventually(t, func() bool { return len(events.Events()) == 2 }, waitFor, tick)
	assert.Never(t, func() bool { return len(events.Events()) > 2 }, 50*time.Millisecond, tick)
	assert.Equal(t, event.ID, events.Events()[0].ID)
	assert.Equal(t, other.ID, events.Events()[1].ID)
}

func TestChannel_MalformedEventsDropped(t *testing.T) {
	network := memtransport.NewNetwork()
	ch, events := newChannel(t, network, "alice", nil)
	_, err := ch.Connect(context.Background())
	require.NoError(t, err)

	network.Inject(realtime.Event{Type: realtime.EventCursorMoved})
	network.Inject(realtime.Event{ID: "x", Type: "bogus"})
	network.Inject(commentEvent(t, "c1"))

	require.Eventually(t, func() bool { return len(events.Events()) == 1 }, waitFor, tick)
	assert.Equal(t, realtime.EventCommentDeleted, events.Events()[0].Type)
}

func TestChannel_TransportLost(t *testing.T) {
	network := memtransport.NewNetwork()
	ch, statuses := newChannel(t, network, "alice", nil)
	_, err := ch.Connect(context.Background())
	require.NoError(t, err)

	network.Drop()
	require.Eventually(t, func() bool { return ch.Status() == realtime.StatusDisconnected }, waitFor, tick)
	require.Eventually(t, func() bool {
		return statuses.LastStatus().Status == realtime.StatusDisconnected
	}, waitFor, tick)
	assert.ErrorIs(t, statuses.LastStatus().Err, &realtime.ChannelError{Kind: realtime.TransportLost})

	_, err = ch.Publish(context.Background(), commentEvent(t, "c1"))
	assert.ErrorIs(t, err, &realtime.ChannelError{Kind: realtime.NotConnected})

	_, err = ch.Connect(context.Background())
	require.NoError(t, err)
	_, err = ch.Publish(context.Background(), commentEvent(t, "c1"))
	assert.NoError(t, err)
}

func TestChannel_DisconnectIsQuiet(t *testing.T) {
	network := memtransport.NewNetwork()
	ch, statuses := newChannel(t, network, "alice", nil)
	_, err := ch.Connect(context.Background())
	require.NoError(t, err)

	ch.Disconnect()
	ch.Disconnect()
	assert.Equal(t, realtime.StatusDisconnected, ch.Status())
	assert.NoError(t, statuses.LastStatus().Err)
	assert.Equal(t, []realtime.Status{
		realtime.StatusConnecting,
		realtime.StatusConnected,
		realtime.StatusDisconnected,
	}, statuses.Statuses())
}

func TestChannel_TickIsMonotonic(t *testing.T) {
	clock := clockwork.NewFakeClock()
	network := memtransport.NewNetwork()
	ch, events := newChannel(t, network, "alice", clock)
	now := clock.Now().UnixMilli()

	assert.Equal(t, now, ch.Tick())
	assert.Equal(t, now+1, ch.Tick(), "a frozen wall clock still advances")

	_, err := ch.Connect(context.Background())
	require.NoError(t, err)
	remote := commentEvent(t, "c1")
	remote.OriginUserID = "bob"
	remote.Timestamp = now + 1000
	network.Inject(remote)
	require.Eventually(t, func() bool { return len(events.Events()) == 1 }, waitFor, tick)

	assert.Equal(t, now+1001, ch.Tick(), "observed remote stamps move the clock forward")

	clock.Advance(time.Hour)
	assert.Equal(t, clock.Now().UnixMilli(), ch.Tick())
}

func TestChannel_Unsubscribe(t *testing.T) {
	network := memtransport.NewNetwork()
	ch, err := realtime.NewChannel(realtime.Config{Transport: network, OriginUserID: "alice"})
	require.NoError(t, err)
	t.Cleanup(ch.Close)

	var (
		mu    sync.Mutex
		count int
	)
	unsubscribe := ch.Subscribe(func(realtime.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	seen := &collector{}
	ch.Subscribe(seen.onEvent)

	_, err = ch.Connect(context.Background())
	require.NoError(t, err)
	network.Inject(commentEvent(t, "c1"))
	require.Eventually(t, func() bool { return len(seen.Events()) == 1 }, waitFor, tick)

	unsubscribe()
	network.Inject(commentEvent(t, "c2"))
	require.Eventually(t, func() bool { return len(seen.Events()) == 2 }, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestNewChannel_Validation(t *testing.T) {
	_, err := realtime.NewChannel(realtime.Config{OriginUserID: "alice"})
	assert.Error(t, err)
	_, err = realtime.NewChannel(realtime.Config{Transport: memtransport.NewNetwork()})
	assert.Error(t, err)
}

func TestNewEvent(t *testing.T) {
	_, err := realtime.NewEvent("bogus", nil)
	assert.ErrorIs(t, err, realtime.ErrUnknownEventType)

	e, err := realtime.NewEvent(realtime.EventPlaybackSync, realtime.PlaybackSyncPayload{CurrentTime: 4.5, IsPlaying: true, Rate: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.JSONEq(t, `{"current_time":4.5,"is_playing":true,"rate":1}`, string(e.Payload))
}
