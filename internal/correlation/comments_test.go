package correlation

import (
	"math"
	"testing"
	"time"

	"github.com/sharetube/review/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(id, parentID string, ts float64, offset time.Duration) domain.Comment {
	c := comment(id, ts, offset)
	c.ParentID = &parentID
	return c
}

func TestCommentSetAddIsIdempotent(t *testing.T) {
	set := NewCommentSet()

	added, err := set.Add(comment("a", 1, 0))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = set.Add(comment("a", 1, 0))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, set.Len())
}

func TestCommentSetRejectsNestedReplies(t *testing.T) {
	set := NewCommentSet()
	_, err := set.Add(comment("root", 1, 0))
	require.NoError(t, err)
	_, err = set.Add(reply("r1", "root", 1, time.Second))
	require.NoError(t, err)

	_, err = set.Add(reply("r2", "r1", 1, 2*time.Second))
	assert.ErrorIs(t, err, ErrNestedReply)
}

func TestCommentSetRejectsInvalidTimestamps(t *testing.T) {
	set := NewCommentSet()

	for _, ts := range []float64{-42.5, -0.001, -2, math.NaN(), math.Inf(1), math.Inf(-1)} {
		added, err := set.Add(comment("bad", ts, 0))
		assert.ErrorIs(t, err, domain.ErrInvalidTimestamp, "timestamp %v", ts)
		assert.False(t, added)
	}
	assert.Equal(t, 0, set.Len())
	assert.Empty(t, set.Markers(120))

	for id, ts := range map[string]float64{"start": 0, "general": domain.SentinelGeneral, "late": 95.5} {
		added, err := set.Add(comment(id, ts, 0))
		require.NoError(t, err)
		assert.True(t, added)
	}
	assert.Equal(t, "start", set.Sorted()[0].ID)
}

func TestCommentSetKeepsOrphanReply(t *testing.T) {
	set := NewCommentSet()
	added, err := set.Add(reply("r1", "missing", 1, 0))
	require.NoError(t, err)
	assert.True(t, added)
}

func TestCommentSetDeleteCascades(t *testing.T) {
	set := NewCommentSet()
	for _, c := range []domain.Comment{
		comment("root", 1, 0),
		reply("r2", "root", 1, 2*time.Second),
		reply("r1", "root", 1, time.Second),
		comment("other", 3, 0),
		reply("r3", "other", 3, time.Second),
	} {
		_, err := set.Add(c)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"r1", "r2"}, ids(set.Replies("root")))

	removed, err := set.Delete("root")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "r1", "r2"}, removed)
	assert.Equal(t, []string{"other", "r3"}, ids(set.Sorted()))

	_, err = set.Delete("root")
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestCommentSetTopLevelAndMarkers(t *testing.T) {
	set := NewCommentSet()
	for _, c := range []domain.Comment{
		comment("g", domain.SentinelGeneral, 0),
		comment("b", 20, 0),
		comment("a", 5, 0),
		reply("r", "a", 5, time.Second),
	} {
		_, err := set.Add(c)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "g"}, ids(set.TopLevel()))
	assert.Len(t, set.Markers(60), 2)
}

func TestCommentSetGetReturnsCopy(t *testing.T) {
	set := NewCommentSet()
	c := comment("a", 1, 0)
	c.Attachments = []domain.Attachment{{URL: "https://cdn/x.png", MimeType: "image/png", Name: "x"}}
	_, err := set.Add(c)
	require.NoError(t, err)

	got, ok := set.Get("a")
	require.True(t, ok)
	got.Attachments[0].Name = "mutated"

	again, _ := set.Get("a")
	assert.Equal(t, "x", again.Attachments[0].Name)
}
