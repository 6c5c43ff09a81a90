package presence

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TTL bounds how long an entry counts as active after it was last seen.
const TTL = 5 * time.Minute

var (
	ErrEntryNotFound = errors.New("presence entry not found")
	ErrEmptyUserID   = errors.New("user id is empty")
)

type Status string

const (
	StatusViewing    Status = "viewing"
	StatusCommenting Status = "commenting"
	StatusEditing    Status = "editing"
	StatusIdle       Status = "idle"
)

func (s Status) Validate() error {
	switch s {
	case StatusViewing, StatusCommenting, StatusEditing, StatusIdle:
		return nil
	default:
		return fmt.Errorf("unknown presence status %q", string(s))
	}
}

type Entry struct {
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	Status         Status    `json:"status"`
	LastSeen       time.Time `json:"last_seen"`
	CurrentAssetID string    `json:"current_asset_id,omitempty"`
}

// Tracker keeps the last known entry per user. Expired entries are hidden at
// read time and never deleted.
type Tracker struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]Entry
}

func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		clock:   clock,
		entries: make(map[string]Entry),
	}
}

// Upsert inserts or replaces the entry for e.UserID and stamps LastSeen with
// the tracker's clock. An unknown user is a join.
func (t *Tracker) Upsert(e Entry) (Entry, error) {
	if e.UserID == "" {
		return Entry{}, ErrEmptyUserID
	}
	if e.Status == "" {
		e.Status = StatusViewing
	}
	if err := e.Status.Validate(); err != nil {
		return Entry{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e.LastSeen = t.clock.Now()
	t.entries[e.UserID] = e
	return e, nil
}

// Observe stores an entry seen elsewhere, keeping its LastSeen. Older
// observations never replace newer ones.
func (t *Tracker) Observe(e Entry) bool {
	if e.UserID == "" || e.Status.Validate() != nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.entries[e.UserID]; ok && e.LastSeen.Before(prev.LastSeen) {
		return false
	}
	t.entries[e.UserID] = e
	return true
}

// SetStatus changes only the status, refreshing LastSeen.
func (t *Tracker) SetStatus(userID string, status Status) (Entry, error) {
	if err := status.Validate(); err != nil {
		return Entry{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	e.Status = status
	e.LastSeen = t.clock.Now()
	t.entries[userID] = e
	return e, nil
}

// Touch refreshes LastSeen of a known user and reports whether it was known.
func (t *Tracker) Touch(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return false
	}
	e.LastSeen = t.clock.Now()
	t.entries[userID] = e
	return true
}

func (t *Tracker) Get(userID string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[userID]
	return e, ok
}

// ActiveEntries returns entries seen within TTL of now, most recent first.
func (t *Tracker) ActiveEntries(now time.Time) []Entry {
	t.mu.RLock()
	all := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		all = append(all, e)
	}
	t.mu.RUnlock()

	return Active(all, now, TTL)
}

// Active filters entries to those with now-LastSeen <= ttl and sorts them by
// LastSeen descending, then by user id.
func Active(entries []Entry, now time.Time, ttl time.Duration) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if now.Sub(e.LastSeen) <= ttl {
			out = append(out, e)
		}
	}

	slices.SortFunc(out, func(a, b Entry) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		if a.UserID < b.UserID {
			return -1
		}
		if a.UserID > b.UserID {
			return 1
		}
		return 0
	})
	return out
}
