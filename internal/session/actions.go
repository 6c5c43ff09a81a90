package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sharetube/review/internal/correlation"
	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/presence"
	"github.com/sharetube/review/internal/realtime"
)

type CommentParams struct {
	Text        string
	ParentID    *string
	Attachments []domain.Attachment
	IsInternal  bool
}

// AddComment stores a new comment locally and publishes it. With attach
// time on, the comment is bound to the current frame; otherwise it is
// general. Store and publish failures leave the comment in place; a failed
// publish queues the event. The returned error says what went wrong.
func (s *Session) AddComment(ctx context.Context, params *CommentParams) (domain.Comment, error) {
	timestamp := domain.SentinelGeneral
	if s.AttachTime() {
		timestamp = correlation.Quantize(s.player.CurrentTime(), s.player.FrameRate())
	}

	return s.addComment(ctx, s.newComment(params, timestamp))
}

// CommitDrawing turns the overlay's strokes into a comment bound to the
// current frame and clears the overlay.
func (s *Session) CommitDrawing(ctx context.Context, params *CommentParams) (domain.Comment, error) {
	strokes := s.overlay.Strokes()
	if len(strokes) == 0 {
		return domain.Comment{}, ErrNoStrokes
	}

	timestamp := correlation.Quantize(s.player.CurrentTime(), s.player.FrameRate())
	c := s.newComment(params, timestamp)
	c.HasDrawing = true
	c.Strokes = strokes

	added, err := s.addComment(ctx, c)
	if added.ID != "" {
		s.overlay.Clear()
	}
	return added, err
}

func (s *Session) newComment(params *CommentParams, timestamp float64) domain.Comment {
	if params == nil {
		params = &CommentParams{}
	}
	return domain.Comment{
		ID:          uuid.NewString(),
		AssetID:     s.asset.ID,
		Timestamp:   timestamp,
		Text:        params.Text,
		AuthorID:    s.identity.UserID,
		AuthorName:  s.identity.Name,
		CreatedAt:   s.now(),
		ParentID:    params.ParentID,
		Attachments: params.Attachments,
		IsInternal:  params.IsInternal,
	}
}

func (s *Session) addComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	if _, err := s.comments.Add(c); err != nil {
		return domain.Comment{}, fmt.Errorf("failed to add comment: %w", err)
	}

	var storeErr error
	if s.store != nil {
		if err := s.store.CreateComment(ctx, c); err != nil {
			storeErr = fmt.Errorf("failed to store comment: %w", err)
		}
	}

	if _, err := s.publish(ctx, realtime.EventCommentAdded, realtime.CommentAddedPayload{Comment: c}, true); err != nil {
		return c, errors.Join(storeErr, err)
	}
	return c, storeErr
}

// DeleteComment removes a comment and its replies locally and publishes the
// deletion. Receivers cascade on their own.
func (s *Session) DeleteComment(ctx context.Context, id string) ([]string, error) {
	removed, err := s.comments.Delete(id)
	if err != nil {
		return nil, err
	}

	var storeErr error
	if s.store != nil {
		if err := s.store.DeleteComment(ctx, id); err != nil {
			storeErr = fmt.Errorf("failed to delete stored comment: %w", err)
		}
	}

	if _, err := s.publish(ctx, realtime.EventCommentDeleted, realtime.CommentDeletedPayload{CommentID: id}, true); err != nil {
		return removed, errors.Join(storeErr, err)
	}
	return removed, storeErr
}

// Seek moves the local transport and shares the new position. Playback sync
// is never queued: a stale position is worthless after reconnecting.
func (s *Session) Seek(ctx context.Context, t float64) error {
	if err := s.player.Seek(t); err != nil {
		return err
	}
	return s.syncPlayback(ctx)
}

func (s *Session) Play(ctx context.Context) error {
	s.player.Play()
	return s.syncPlayback(ctx)
}

func (s *Session) Pause(ctx context.Context) error {
	s.player.Pause()
	return s.syncPlayback(ctx)
}

func (s *Session) SetRate(ctx context.Context, rate float64) error {
	if err := s.player.SetRate(rate); err != nil {
		return err
	}
	return s.syncPlayback(ctx)
}

func (s *Session) syncPlayback(ctx context.Context) error {
	state := s.player.State()
	e, err := s.publish(ctx, realtime.EventPlaybackSync, realtime.PlaybackSyncPayload{
		CurrentTime: state.CurrentTime,
		IsPlaying:   state.IsPlaying,
		Rate:        state.Rate,
	}, false)

	// the local action wins over remote syncs older than it, sent or not
	s.mu.Lock()
	s.lastLocalSync = max(s.lastLocalSync, e.Timestamp)
	s.mu.Unlock()

	return err
}

// MoveCursor shares the local pointer position over the media frame.
func (s *Session) MoveCursor(ctx context.Context, x, y float64) error {
	_, err := s.publish(ctx, realtime.EventCursorMoved, realtime.CursorMovedPayload{
		Name:  s.identity.Name,
		Color: s.identity.Color,
		X:     x,
		Y:     y,
	}, false)
	return err
}

func (s *Session) SetStatus(ctx context.Context, status presence.Status) error {
	if _, err := s.presence.SetStatus(s.identity.UserID, status); err != nil {
		return err
	}
	return s.publishPresence(ctx, status)
}
