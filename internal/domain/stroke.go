package domain

import "fmt"

type Tool string

const (
	ToolPen       Tool = "pen"
	ToolLine      Tool = "line"
	ToolRectangle Tool = "rectangle"
	ToolArrow     Tool = "arrow"
)

func (t Tool) Validate() error {
	switch t {
	case ToolPen, ToolLine, ToolRectangle, ToolArrow:
		return nil
	default:
		return fmt.Errorf("unknown drawing tool %q", string(t))
	}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Stroke struct {
	Tool           Tool    `json:"tool"`
	Color          string  `json:"color"`
	Path           []Point `json:"path"`
	BoundTimestamp float64 `json:"bound_timestamp"`
}

func (s Stroke) Clone() Stroke {
	out := s
	out.Path = append([]Point(nil), s.Path...)
	return out
}
