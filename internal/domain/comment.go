package domain

import (
	"errors"
	"math"
	"time"
)

// SentinelGeneral marks a comment that is not bound to a moment in the media.
const SentinelGeneral float64 = -1

var (
	ErrEmptyCommentID   = errors.New("comment id is empty")
	ErrEmptyCommentText = errors.New("comment text is empty")
	ErrInvalidTimestamp = errors.New("comment timestamp must be a finite non-negative time or general")
)

type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name"`
}

type Comment struct {
	ID          string       `json:"id"`
	AssetID     string       `json:"asset_id"`
	Timestamp   float64      `json:"timestamp"`
	Text        string       `json:"text"`
	AuthorID    string       `json:"author_id"`
	AuthorName  string       `json:"author_name"`
	CreatedAt   time.Time    `json:"created_at"`
	ParentID    *string      `json:"parent_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	IsInternal  bool         `json:"is_internal"`
	HasDrawing  bool         `json:"has_drawing"`
	Strokes     []Stroke     `json:"strokes,omitempty"`
}

func (c Comment) IsGeneral() bool {
	return c.Timestamp == SentinelGeneral
}

func (c Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

func (c Comment) Validate() error {
	if c.ID == "" {
		return ErrEmptyCommentID
	}

	if c.Text == "" && !c.HasDrawing && len(c.Attachments) == 0 {
		return ErrEmptyCommentText
	}

	if !c.IsGeneral() && (math.IsNaN(c.Timestamp) || math.IsInf(c.Timestamp, 0) || c.Timestamp < 0) {
		return ErrInvalidTimestamp
	}

	return nil
}

// Clone returns a deep copy so callers can't mutate stored slices.
func (c Comment) Clone() Comment {
	out := c
	if c.ParentID != nil {
		parentID := *c.ParentID
		out.ParentID = &parentID
	}
	if c.Attachments != nil {
		out.Attachments = append([]Attachment(nil), c.Attachments...)
	}
	if c.Strokes != nil {
		out.Strokes = make([]Stroke, len(c.Strokes))
		for i, s := range c.Strokes {
			out.Strokes[i] = s.Clone()
		}
	}

	return out
}
