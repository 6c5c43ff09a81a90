package correlation

import (
	"bytes"
	"testing"
	"time"

	"github.com/sharetube/review/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	general := comment("g", domain.SentinelGeneral, 0)
	general.AuthorName = "Dana"
	general.Text = "overall, nice"

	timed := comment("t", 75.4, time.Minute)
	timed.AuthorName = "Lee"
	timed.Text = "cut here, please"

	anonymous := comment("x", 3, 0)
	anonymous.AuthorID = "user-9"
	anonymous.Text = "hm"

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []domain.Comment{general, timed, anonymous}))

	want := "author,content,videoTime,createdAt\n" +
		"user-9,hm,00:03,2024-03-01T12:00:00Z\n" +
		"Lee,\"cut here, please\",01:15,2024-03-01T12:01:00Z\n" +
		"Dana,\"overall, nice\",General,2024-03-01T12:00:00Z\n"
	assert.Equal(t, want, buf.String())
}
