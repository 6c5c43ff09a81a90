package correlation

import (
	"slices"

	"github.com/sharetube/review/internal/domain"
)

// Compare orders comments by timestamp with general comments last,
// breaking ties by creation time.
func Compare(a, b domain.Comment) int {
	ag, bg := a.IsGeneral(), b.IsGeneral()
	switch {
	case ag && !bg:
		return 1
	case !ag && bg:
		return -1
	case !ag:
		if a.Timestamp < b.Timestamp {
			return -1
		}
		if a.Timestamp > b.Timestamp {
			return 1
		}
	}

	return a.CreatedAt.Compare(b.CreatedAt)
}

// Sort returns a sorted copy; equal comments keep their input order.
func Sort(comments []domain.Comment) []domain.Comment {
	sorted := slices.Clone(comments)
	slices.SortStableFunc(sorted, Compare)
	return sorted
}
