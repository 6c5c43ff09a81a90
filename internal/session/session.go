package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/review/internal/annotation"
	"github.com/sharetube/review/internal/correlation"
	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/playback"
	"github.com/sharetube/review/internal/presence"
	"github.com/sharetube/review/internal/realtime"
)

var (
	ErrEmptyIdentity = errors.New("identity user id is empty")
	ErrNoStrokes     = errors.New("overlay has no committed strokes")
)

// AssetStore persists comments outside the session. It is optional.
type AssetStore interface {
	ListAssets(ctx context.Context, projectID string) ([]domain.Asset, error)
	CreateComment(ctx context.Context, c domain.Comment) error
	DeleteComment(ctx context.Context, id string) error
}

type Config struct {
	Identity domain.Identity
	Asset    domain.Asset
	Player   *playback.Controller
	Channel  *realtime.Channel
	Store    AssetStore
	Clock    clockwork.Clock

	// HeartbeatInterval defaults to half the presence TTL.
	HeartbeatInterval time.Duration
}

type applyKey struct {
	origin    string
	eventType realtime.EventType
}

// Session is one local user reviewing one asset. It owns the comment set,
// cursor board, presence tracker and annotation overlay, and reconciles
// them with events arriving over the channel.
type Session struct {
	identity domain.Identity
	asset    domain.Asset
	player   *playback.Controller
	channel  *realtime.Channel
	store    AssetStore
	clock    clockwork.Clock

	comments *correlation.CommentSet
	cursors  *correlation.CursorBoard
	presence *presence.Tracker
	overlay  *annotation.Overlay

	mu            sync.Mutex
	attachTime    bool
	lastApplied   map[applyKey]int64
	lastLocalSync int64
	pending       []realtime.Event
	unsubscribe   []func()
}

func New(cfg Config) (*Session, error) {
	if cfg.Identity.UserID == "" {
		return nil, ErrEmptyIdentity
	}
	if cfg.Player == nil || cfg.Channel == nil {
		return nil, errors.New("player and channel are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = presence.TTL / 2
	}

	s := &Session{
		identity:    cfg.Identity,
		asset:       cfg.Asset,
		player:      cfg.Player,
		channel:     cfg.Channel,
		store:       cfg.Store,
		clock:       cfg.Clock,
		comments:    correlation.NewCommentSet(),
		cursors:     correlation.NewCursorBoard(),
		presence:    presence.NewTracker(cfg.Clock),
		overlay:     annotation.NewOverlay(cfg.Player),
		attachTime:  true,
		lastApplied: make(map[applyKey]int64),
	}

	if _, err := s.presence.Upsert(s.selfEntry(presence.StatusViewing)); err != nil {
		return nil, fmt.Errorf("failed to register local presence: %w", err)
	}
	s.unsubscribe = append(s.unsubscribe, s.channel.Subscribe(s.handleEvent))

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	go s.heartbeatLoop(heartbeatCtx, s.clock.NewTicker(cfg.HeartbeatInterval))
	s.unsubscribe = append(s.unsubscribe, stopHeartbeat)

	return s, nil
}

// Connect joins the hub, seeds comments and presence from its snapshot and
// announces the local user.
func (s *Session) Connect(ctx context.Context) error {
	welcome, err := s.channel.Connect(ctx)
	if err != nil {
		return err
	}

	for _, c := range welcome.Comments {
		if _, err := s.comments.Add(c); err != nil {
			slog.WarnContext(ctx, "skipped snapshot comment", "comment_id", c.ID, "error", err)
		}
	}
	for _, e := range welcome.Presence {
		if e.UserID != s.identity.UserID {
			s.presence.Observe(e)
		}
	}

	entry, _ := s.presence.Get(s.identity.UserID)
	if err := s.publishPresence(ctx, entry.Status); err != nil {
		return fmt.Errorf("failed to announce presence: %w", err)
	}
	return nil
}

func (s *Session) Disconnect() {
	s.channel.Disconnect()
}

// Close stops the heartbeat and releases subscriptions, the channel and the player.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	s.channel.Close()
	s.player.Close()
}

func (s *Session) Identity() domain.Identity { return s.identity }
func (s *Session) Asset() domain.Asset { return s.asset }
func (s *Session) Player() *playback.Controller { return s.player }
func (s *Session) Overlay() *annotation.Overlay { return s.overlay }
func (s *Session) ChannelStatus() realtime.Status { return s.channel.Status() }
func (s *Session) Comments() []domain.Comment { return s.comments.Sorted() }
func (s *Session) Replies(id string) []domain.Comment { return s.comments.Replies(id) }

// PresenceKnown is false while the channel is down; the presence view is
// then stale and should be shown as unknown.
func (s *Session) PresenceKnown() bool {
	return s.channel.Status() == realtime.StatusConnected
}

func (s *Session) Markers() []correlation.MarkerGroup {
	return s.comments.Markers(s.player.State().Duration)
}

func (s *Session) Cursors() []correlation.CursorSample {
	return s.cursors.Visible(s.clock.Now())
}

func (s *Session) ActiveUsers() []presence.Entry {
	return s.presence.ActiveEntries(s.clock.Now())
}

func (s *Session) SetAttachTime(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachTime = v
}

func (s *Session) AttachTime() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachTime
}

// Export writes every comment as CSV in list-view order.
func (s *Session) Export(w io.Writer) error {
	return correlation.WriteCSV(w, s.comments.Sorted())
}

// Pending returns local events that could not be published, oldest first.
func (s *Session) Pending() []realtime.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.Event(nil), s.pending...)
}

// RepublishPending retries queued events in order, keeping their ids so
// peers that already saw them drop the duplicates. It stops at the first
// failure and reports how many were sent.
func (s *Session) RepublishPending(ctx context.Context) (int, error) {
	sent := 0
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return sent, nil
		}
		e := s.pending[0]
		s.mu.Unlock()

		if _, err := s.channel.Publish(ctx, e); err != nil {
			return sent, err
		}

		s.mu.Lock()
		if len(s.pending) > 0 && s.pending[0].ID == e.ID {
			s.pending = s.pending[1:]
		}
		s.mu.Unlock()
		sent++
	}
}

func (s *Session) selfEntry(status presence.Status) presence.Entry {
	return presence.Entry{
		UserID:         s.identity.UserID,
		Name:           s.identity.Name,
		Color:          s.identity.Color,
		Status:         status,
		CurrentAssetID: s.asset.ID,
	}
}

// publish sends a local event. Events that must survive an outage are
// queued for RepublishPending when the send fails.
func (s *Session) publish(ctx context.Context, t realtime.EventType, payload any, queueOnFailure bool) (realtime.Event, error) {
	e, err := realtime.NewEvent(t, payload)
	if err != nil {
		return realtime.Event{}, err
	}
	e.OriginUserID = s.identity.UserID
	e.Timestamp = s.channel.Tick()

	sent, err := s.channel.Publish(ctx, e)
	if err != nil {
		if queueOnFailure {
			s.mu.Lock()
			s.pending = append(s.pending, e)
			s.mu.Unlock()
		}
		slog.DebugContext(ctx, "publish failed", "type", t, "queued", queueOnFailure, "error", err)
		return e, err
	}
	return sent, nil
}

func (s *Session) publishPresence(ctx context.Context, status presence.Status) error {
	_, err := s.publish(ctx, realtime.EventPresenceChanged, realtime.PresenceChangedPayload{
		Name:    s.identity.Name,
		Color:   s.identity.Color,
		Status:  status,
		AssetID: s.asset.ID,
	}, false)
	return err
}

// heartbeatLoop keeps the local presence entry fresh and re-announces it to
// peers while connected.
func (s *Session) heartbeatLoop(ctx context.Context, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.heartbeat(ctx)
		}
	}
}

func (s *Session) heartbeat(ctx context.Context) {
	s.presence.Touch(s.identity.UserID)
	if s.channel.Status() != realtime.StatusConnected {
		return
	}

	entry, _ := s.presence.Get(s.identity.UserID)
	if err := s.publishPresence(ctx, entry.Status); err != nil {
		slog.DebugContext(ctx, "presence heartbeat not sent", "error", err)
	}
}

func (s *Session) now() time.Time {
	return s.clock.Now().UTC()
}
