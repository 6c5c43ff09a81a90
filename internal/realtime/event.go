package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/presence"
)

type EventType string

const (
	EventCommentAdded    EventType = "comment_added"
	EventCommentDeleted  EventType = "comment_deleted"
	EventPresenceChanged EventType = "presence_changed"
	EventCursorMoved     EventType = "cursor_moved"
	EventPlaybackSync    EventType = "playback_sync"
)

var ErrUnknownEventType = errors.New("unknown event type")

func (t EventType) Validate() error {
	switch t {
	case EventCommentAdded, EventCommentDeleted, EventPresenceChanged, EventCursorMoved, EventPlaybackSync:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, string(t))
	}
}

// Event is one sync message. Timestamp is the origin's logical clock in
// milliseconds and orders events only within the same origin.
type Event struct {
	ID           string          `json:"id"`
	Type         EventType       `json:"type"`
	OriginUserID string          `json:"origin_user_id"`
	Timestamp    int64           `json:"timestamp"`
	Payload      json.RawMessage `json:"payload"`
}

// NewEvent builds an event with a fresh id and payload encoded as JSON.
// Origin and timestamp are filled in on publish.
func NewEvent(t EventType, payload any) (Event, error) {
	if err := t.Validate(); err != nil {
		return Event{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}

	return Event{
		ID:      uuid.NewString(),
		Type:    t,
		Payload: data,
	}, nil
}

func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

type CommentAddedPayload struct {
	Comment domain.Comment `json:"comment"`
}

type CommentDeletedPayload struct {
	CommentID string `json:"comment_id"`
}

type PresenceChangedPayload struct {
	Name    string          `json:"name"`
	Color   string          `json:"color"`
	Status  presence.Status `json:"status"`
	AssetID string          `json:"asset_id,omitempty"`
}

type CursorMovedPayload struct {
	Name  string  `json:"name"`
	Color string  `json:"color"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type PlaybackSyncPayload struct {
	CurrentTime float64 `json:"current_time"`
	IsPlaying   bool    `json:"is_playing"`
	Rate        float64 `json:"rate"`
}
