package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetube/review/internal/correlation"
	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/presence"
	"github.com/sharetube/review/internal/realtime"
	"github.com/sharetube/review/internal/repository/asset"
	"github.com/sharetube/review/internal/repository/connection"
	repopresence "github.com/sharetube/review/internal/repository/presence"
)

// HandleEvent stamps an incoming event with the sender's identity, persists
// what needs persisting and returns the peers it must be relayed to. A
// redelivered comment event yields an empty broadcast.
func (s service) HandleEvent(ctx context.Context, params *HandleEventParams) (Broadcast, error) {
	member, err := s.connRepo.GetMember(params.Conn)
	if err != nil {
		return Broadcast{}, ErrNotJoined
	}

	e := params.Event
	if e.ID == "" {
		return Broadcast{}, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if err := e.Type.Validate(); err != nil {
		return Broadcast{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	e.OriginUserID = member.UserID
	if e.Timestamp <= 0 {
		e.Timestamp = s.clock.Now().UnixMilli()
	}

	relay := true
	switch e.Type {
	case realtime.EventCommentAdded:
		relay, e, err = s.persistComment(ctx, member, e)
	case realtime.EventCommentDeleted:
		relay, err = s.deleteComment(ctx, member, e)
	case realtime.EventPresenceChanged:
		err = s.persistPresence(ctx, member, e)
	}
	if err == nil && e.Type != realtime.EventPresenceChanged {
		err = s.touch(ctx, member)
	}
	if err != nil {
		return Broadcast{}, err
	}

	if !relay {
		slog.DebugContext(ctx, "event not relayed", "event_id", e.ID, "type", e.Type)
		return Broadcast{Event: e}, nil
	}

	return Broadcast{Event: e, Conns: s.connRepo.RoomConns(member.AssetID, params.Conn)}, nil
}

func (s service) persistComment(ctx context.Context, member connection.Member, e realtime.Event) (bool, realtime.Event, error) {
	var payload realtime.CommentAddedPayload
	if err := e.Decode(&payload); err != nil {
		return false, e, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	c := payload.Comment
	c.AssetID = member.AssetID
	c.AuthorID = member.UserID
	if c.AuthorName == "" {
		c.AuthorName = member.Name
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.clock.Now().UTC()
	}
	if err := c.Validate(); err != nil {
		return false, e, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err := s.checkParent(ctx, c); err != nil {
		return false, e, err
	}

	created, err := s.assetRepo.CreateComment(ctx, c)
	if err != nil {
		return false, e, err
	}

	restamped, err := realtime.NewEvent(realtime.EventCommentAdded, realtime.CommentAddedPayload{Comment: c})
	if err != nil {
		return false, e, err
	}
	e.Payload = restamped.Payload

	return created, e, nil
}

// Touch refreshes the presence of the member behind conn. It is called for
// every keepalive.
func (s service) Touch(ctx context.Context, conn connection.Conn) error {
	member, err := s.connRepo.GetMember(conn)
	if err != nil {
		return ErrNotJoined
	}

	return s.touch(ctx, member)
}

// touch bumps the member's last seen time. An entry that already expired is
// written again as viewing.
func (s service) touch(ctx context.Context, member connection.Member) error {
	now := s.clock.Now()
	err := s.presenceRepo.Touch(ctx, member.AssetID, member.UserID, now)
	if !errors.Is(err, repopresence.ErrNotFound) {
		return err
	}

	return s.presenceRepo.SetPresence(ctx, member.AssetID, presence.Entry{
		UserID:         member.UserID,
		Name:           member.Name,
		Color:          member.Color,
		Status:         presence.StatusViewing,
		LastSeen:       now,
		CurrentAssetID: member.AssetID,
	})
}

// checkParent keeps replies one level deep. A reply whose parent is not
// stored yet is accepted.
func (s service) checkParent(ctx context.Context, c domain.Comment) error {
	if !c.IsReply() {
		return nil
	}

	parent, err := s.assetRepo.GetComment(ctx, c.AssetID, *c.ParentID)
	if errors.Is(err, asset.ErrCommentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get parent comment: %w", err)
	}
	if parent.IsReply() {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, correlation.ErrNestedReply)
	}

	return nil
}

func (s service) deleteComment(ctx context.Context, member connection.Member, e realtime.Event) (bool, error) {
	var payload realtime.CommentDeletedPayload
	if err := e.Decode(&payload); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if payload.CommentID == "" {
		return false, fmt.Errorf("%w: %w", ErrInvalidEvent, domain.ErrEmptyCommentID)
	}

	if _, err := s.assetRepo.DeleteComment(ctx, member.AssetID, payload.CommentID); err != nil {
		if errors.Is(err, asset.ErrCommentNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (s service) persistPresence(ctx context.Context, member connection.Member, e realtime.Event) error {
	var payload realtime.PresenceChangedPayload
	if err := e.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if payload.Status == "" {
		payload.Status = presence.StatusViewing
	}
	if err := payload.Status.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	entry := presence.Entry{
		UserID:         member.UserID,
		Name:           payload.Name,
		Color:          payload.Color,
		Status:         payload.Status,
		LastSeen:       s.clock.Now(),
		CurrentAssetID: member.AssetID,
	}
	if entry.Name == "" {
		entry.Name = member.Name
	}
	if entry.Color == "" {
		entry.Color = member.Color
	}

	return s.presenceRepo.SetPresence(ctx, member.AssetID, entry)
}
