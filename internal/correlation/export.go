package correlation

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/pkg/timecode"
)

const generalLabel = "General"

var csvHeader = []string{"author", "content", "videoTime", "createdAt"}

// WriteCSV renders comments in list-view order, one row per comment.
func WriteCSV(w io.Writer, comments []domain.Comment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, c := range Sort(comments) {
		if err := cw.Write(exportRow(c)); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", c.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func exportRow(c domain.Comment) []string {
	author := c.AuthorName
	if author == "" {
		author = c.AuthorID
	}

	videoTime := generalLabel
	if !c.IsGeneral() {
		videoTime = timecode.Format(c.Timestamp)
	}

	return []string{author, c.Text, videoTime, c.CreatedAt.UTC().Format(time.RFC3339)}
}
