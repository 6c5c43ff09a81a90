package session

import (
	"errors"
	"log/slog"

	"github.com/sharetube/review/internal/correlation"
	"github.com/sharetube/review/internal/presence"
	"github.com/sharetube/review/internal/realtime"
)

func (s *Session) handleEvent(e realtime.Event) {
	if _, err := s.Apply(e); err != nil {
		slog.Warn("failed to apply event", "id", e.ID, "type", e.Type, "origin", e.OriginUserID, "error", err)
	}
}

// Apply reconciles one remote event and reports whether it changed anything.
// Applying the same event twice has the same effect as applying it once.
// Any well-formed event also counts as a sign of life from its origin.
func (s *Session) Apply(e realtime.Event) (bool, error) {
	if e.OriginUserID == s.identity.UserID {
		return false, nil
	}

	changed, err := s.apply(e)
	if err == nil && e.Type != realtime.EventPresenceChanged {
		s.presence.Touch(e.OriginUserID)
	}
	return changed, err
}

func (s *Session) apply(e realtime.Event) (bool, error) {
	switch e.Type {
	case realtime.EventCommentAdded:
		var p realtime.CommentAddedPayload
		if err := e.Decode(&p); err != nil {
			return false, err
		}
		return s.comments.Add(p.Comment)

	case realtime.EventCommentDeleted:
		var p realtime.CommentDeletedPayload
		if err := e.Decode(&p); err != nil {
			return false, err
		}
		if _, err := s.comments.Delete(p.CommentID); err != nil {
			if errors.Is(err, correlation.ErrCommentNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil

	case realtime.EventPresenceChanged:
		var p realtime.PresenceChangedPayload
		if err := e.Decode(&p); err != nil {
			return false, err
		}
		if !s.advance(e) {
			return false, nil
		}
		_, err := s.presence.Upsert(presence.Entry{
			UserID:         e.OriginUserID,
			Name:           p.Name,
			Color:          p.Color,
			Status:         p.Status,
			CurrentAssetID: p.AssetID,
		})
		return err == nil, err

	case realtime.EventCursorMoved:
		var p realtime.CursorMovedPayload
		if err := e.Decode(&p); err != nil {
			return false, err
		}
		if !s.advance(e) {
			return false, nil
		}
		return s.cursors.Put(correlation.CursorSample{
			UserID:    e.OriginUserID,
			Name:      p.Name,
			Color:     p.Color,
			X:         p.X,
			Y:         p.Y,
			Timestamp: s.clock.Now(),
		}), nil

	case realtime.EventPlaybackSync:
		var p realtime.PlaybackSyncPayload
		if err := e.Decode(&p); err != nil {
			return false, err
		}
		s.mu.Lock()
		stale := e.Timestamp < s.lastLocalSync
		s.mu.Unlock()
		if stale || !s.advance(e) {
			return false, nil
		}
		return true, s.applyPlayback(p)

	default:
		return false, realtime.ErrUnknownEventType
	}
}

// advance records e as the latest of its type from its origin, refusing
// anything not newer than what was already applied.
func (s *Session) advance(e realtime.Event) bool {
	key := applyKey{origin: e.OriginUserID, eventType: e.Type}

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastApplied[key]; ok && e.Timestamp <= last {
		return false
	}
	s.lastApplied[key] = e.Timestamp
	return true
}

func (s *Session) applyPlayback(p realtime.PlaybackSyncPayload) error {
	if p.Rate > 0 {
		if err := s.player.SetRate(p.Rate); err != nil {
			return err
		}
	}
	if err := s.player.Seek(p.CurrentTime); err != nil {
		return err
	}
	if p.IsPlaying {
		s.player.Play()
	} else {
		s.player.Pause()
	}
	return nil
}
