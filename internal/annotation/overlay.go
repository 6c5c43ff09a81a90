package annotation

import (
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/sharetube/review/internal/correlation"
	"github.com/sharetube/review/internal/domain"
)

var (
	ErrAlreadyDrawing = errors.New("a stroke is already in progress")
	ErrNotDrawing     = errors.New("no stroke in progress")
	ErrEmptyColor     = errors.New("color is empty")
	ErrInvalidPoint   = errors.New("point coordinates must be finite")
	ErrEmptyStroke    = errors.New("shape strokes need a start and an end point")
)

const DefaultColor = "#ff3b30"

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseDrawing   Phase = "drawing"
	PhaseCommitted Phase = "committed"
	PhaseDiscarded Phase = "discarded"
)

// TimeSource is the part of the playback controller the overlay reads when
// binding a stroke to a frame.
type TimeSource interface {
	CurrentTime() float64
	FrameRate() float64
}

// Overlay is one drawing session over a media frame. Tool and color live
// only as long as the overlay.
type Overlay struct {
	player TimeSource

	mu      sync.Mutex
	tool    domain.Tool
	color   string
	phase   Phase
	current *domain.Stroke
	strokes []domain.Stroke
	redo    []domain.Stroke
}

func NewOverlay(player TimeSource) *Overlay {
	return &Overlay{
		player: player,
		tool:   domain.ToolPen,
		color:  DefaultColor,
		phase:  PhaseIdle,
	}
}

func (o *Overlay) SelectTool(tool domain.Tool) error {
	if err := tool.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.tool = tool
	return nil
}

func (o *Overlay) SelectColor(color string) error {
	if color == "" {
		return ErrEmptyColor
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.color = color
	return nil
}

func (o *Overlay) Tool() domain.Tool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tool
}

func (o *Overlay) Color() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.color
}

func (o *Overlay) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Begin starts a stroke with the selected tool and color.
func (o *Overlay) Begin(p domain.Point) error {
	if !validPoint(p) {
		return ErrInvalidPoint
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase == PhaseDrawing {
		return ErrAlreadyDrawing
	}
	o.current = &domain.Stroke{
		Tool:  o.tool,
		Color: o.color,
		Path:  []domain.Point{p},
	}
	o.phase = PhaseDrawing
	return nil
}

// Extend adds a point to the stroke in progress. Pen strokes keep every
// point; shapes keep only their start and the latest point.
func (o *Overlay) Extend(p domain.Point) error {
	if !validPoint(p) {
		return ErrInvalidPoint
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase != PhaseDrawing {
		return ErrNotDrawing
	}
	if o.current.Tool == domain.ToolPen {
		o.current.Path = append(o.current.Path, p)
	} else {
		o.current.Path = append(o.current.Path[:1], p)
	}
	return nil
}

// Finish commits the stroke in progress, binding it to the player's current
// time snapped to a frame boundary. Committing clears the redo stack.
func (o *Overlay) Finish() (domain.Stroke, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase != PhaseDrawing {
		return domain.Stroke{}, ErrNotDrawing
	}
	if o.current.Tool != domain.ToolPen && len(o.current.Path) < 2 {
		return domain.Stroke{}, ErrEmptyStroke
	}

	stroke := *o.current
	stroke.BoundTimestamp = correlation.Quantize(o.player.CurrentTime(), o.player.FrameRate())
	o.strokes = append(o.strokes, stroke)
	o.redo = nil
	o.current = nil
	o.phase = PhaseCommitted

	return stroke.Clone(), nil
}

// Discard drops the stroke in progress, if any.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase != PhaseDrawing {
		return
	}
	o.current = nil
	o.phase = PhaseDiscarded
}

// Undo removes the most recently committed stroke.
func (o *Overlay) Undo() (domain.Stroke, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.strokes) == 0 {
		return domain.Stroke{}, false
	}
	last := o.strokes[len(o.strokes)-1]
	o.strokes = o.strokes[:len(o.strokes)-1]
	o.redo = append(o.redo, last)
	return last.Clone(), true
}

// Redo restores the most recently undone stroke.
func (o *Overlay) Redo() (domain.Stroke, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.redo) == 0 {
		return domain.Stroke{}, false
	}
	last := o.redo[len(o.redo)-1]
	o.redo = o.redo[:len(o.redo)-1]
	o.strokes = append(o.strokes, last)
	return last.Clone(), true
}

func (o *Overlay) CanUndo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.strokes) > 0
}

func (o *Overlay) CanRedo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.redo) > 0
}

// Clear drops every stroke, including the undo history and any stroke in progress.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.strokes = nil
	o.redo = nil
	o.current = nil
	o.phase = PhaseIdle
}

// Strokes returns a copy of the committed strokes, oldest first.
func (o *Overlay) Strokes() []domain.Stroke {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := slices.Clone(o.strokes)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

func validPoint(p domain.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
