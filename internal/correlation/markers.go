package correlation

import (
	"slices"

	"github.com/sharetube/review/internal/domain"
)

// MarkerWindow is the proximity, in seconds, under which comments share a marker.
const MarkerWindow = 2.0

type MarkerGroup struct {
	AnchorTime float64          `json:"anchor_time"`
	Percent    float64          `json:"percent"`
	Comments   []domain.Comment `json:"comments"`
}

// Markers clusters timestamped top-level comments so that overlapping markers
// collapse into one. Comments are chained: each one joins the current group
// when it lies within MarkerWindow of the previous member, which makes the
// result independent of input order.
func Markers(comments []domain.Comment, duration float64) []MarkerGroup {
	timed := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		if c.IsGeneral() || c.IsReply() || !isFinite(c.Timestamp) {
			continue
		}
		timed = append(timed, c)
	}
	if len(timed) == 0 {
		return []MarkerGroup{}
	}

	slices.SortStableFunc(timed, Compare)

	groups := make([]MarkerGroup, 0, len(timed))
	current := MarkerGroup{
		AnchorTime: timed[0].Timestamp,
		Comments:   []domain.Comment{timed[0]},
	}
	last := timed[0].Timestamp
	for _, c := range timed[1:] {
		if c.Timestamp-last <= MarkerWindow {
			current.Comments = append(current.Comments, c)
		} else {
			current.Percent = PositionPercent(current.AnchorTime, duration)
			groups = append(groups, current)
			current = MarkerGroup{
				AnchorTime: c.Timestamp,
				Comments:   []domain.Comment{c},
			}
		}
		last = c.Timestamp
	}
	current.Percent = PositionPercent(current.AnchorTime, duration)
	groups = append(groups, current)

	return groups
}
