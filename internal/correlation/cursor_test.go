package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCursorBoard(t *testing.T) {
	board := NewCursorBoard()
	now := baseTime

	assert.True(t, board.Put(CursorSample{UserID: "u1", X: 1, Y: 1, Timestamp: now}))
	assert.True(t, board.Put(CursorSample{UserID: "u1", X: 2, Y: 2, Timestamp: now.Add(time.Second)}))
	assert.False(t, board.Put(CursorSample{UserID: "u1", X: 9, Y: 9, Timestamp: now}), "older sample must not win")
	board.Put(CursorSample{UserID: "u2", X: 5, Y: 5, Timestamp: now.Add(-time.Minute)})

	visible := board.Visible(now.Add(2 * time.Second))
	if assert.Len(t, visible, 1) {
		assert.Equal(t, "u1", visible[0].UserID)
		assert.Equal(t, 2.0, visible[0].X)
	}

	assert.Empty(t, board.Visible(now.Add(CursorTTL+2*time.Second)))

	board.Remove("u1")
	assert.Empty(t, board.Visible(now))
}
