package presence

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}

func TestTracker_UpsertIsJoin(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewTracker(clock)

	entry, err := tracker.Upsert(Entry{UserID: "u1", Name: "Ada", Color: "#fff"})
	require.NoError(t, err)
	assert.Equal(t, StatusViewing, entry.Status)
	assert.Equal(t, clock.Now(), entry.LastSeen)

	clock.Advance(time.Minute)
	entry, err = tracker.Upsert(Entry{UserID: "u1", Name: "Ada L.", Status: StatusEditing})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", entry.Name)
	assert.Equal(t, clock.Now(), entry.LastSeen)

	_, err = tracker.Upsert(Entry{})
	assert.ErrorIs(t, err, ErrEmptyUserID)
	_, err = tracker.Upsert(Entry{UserID: "u2", Status: "sleeping"})
	assert.Error(t, err)
}

func TestTracker_ActiveEntriesOrderAndTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewTracker(clock)

	_, err := tracker.Upsert(Entry{UserID: "old"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = tracker.Upsert(Entry{UserID: "mid"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = tracker.Upsert(Entry{UserID: "new"})
	require.NoError(t, err)

	assert.Equal(t, []string{"new", "mid", "old"}, userIDs(tracker.ActiveEntries(clock.Now())))

	// old is now exactly at the TTL boundary
	clock.Advance(3 * time.Minute)
	assert.Equal(t, []string{"new", "mid", "old"}, userIDs(tracker.ActiveEntries(clock.Now())))

	clock.Advance(time.Second)
	assert.Equal(t, []string{"new", "mid"}, userIDs(tracker.ActiveEntries(clock.Now())))

	_, ok := tracker.Get("old")
	assert.True(t, ok, "expired entries are filtered, not deleted")
}

func TestTracker_SetStatus(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewTracker(clock)

	_, err := tracker.SetStatus("ghost", StatusIdle)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = tracker.Upsert(Entry{UserID: "u1", Name: "Ada"})
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	assert.Empty(t, tracker.ActiveEntries(clock.Now()))

	entry, err := tracker.SetStatus("u1", StatusCommenting)
	require.NoError(t, err)
	assert.Equal(t, StatusCommenting, entry.Status)
	assert.Equal(t, "Ada", entry.Name)
	assert.Equal(t, []string{"u1"}, userIDs(tracker.ActiveEntries(clock.Now())))
}

func TestTracker_TouchKeepsStatus(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewTracker(clock)
	assert.False(t, tracker.Touch("u1"))

	_, err := tracker.Upsert(Entry{UserID: "u1", Status: StatusCommenting})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		clock.Advance(4 * time.Minute)
		assert.True(t, tracker.Touch("u1"))
	}

	active := tracker.ActiveEntries(clock.Now())
	require.Len(t, active, 1)
	assert.Equal(t, StatusCommenting, active[0].Status)
	assert.Equal(t, clock.Now(), active[0].LastSeen)
}

func TestTracker_Observe(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewTracker(clock)
	now := clock.Now()

	assert.True(t, tracker.Observe(Entry{UserID: "u1", Status: StatusEditing, LastSeen: now}))
	assert.False(t, tracker.Observe(Entry{UserID: "u1", Status: StatusIdle, LastSeen: now.Add(-time.Second)}))

	entry, _ := tracker.Get("u1")
	assert.Equal(t, StatusEditing, entry.Status)
	assert.False(t, tracker.Observe(Entry{UserID: "u2", Status: "bogus", LastSeen: now}))
}

func TestActive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{UserID: "b", LastSeen: now.Add(-time.Minute)},
		{UserID: "a", LastSeen: now.Add(-time.Minute)},
		{UserID: "c", LastSeen: now.Add(-6 * time.Minute)},
		{UserID: "d", LastSeen: now},
	}

	assert.Equal(t, []string{"d", "a", "b"}, userIDs(Active(entries, now, TTL)))
	assert.Empty(t, Active(nil, now, TTL))
}
