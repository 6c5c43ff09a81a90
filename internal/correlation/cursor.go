package correlation

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// CursorTTL is how long a cursor sample stays visible without a newer one.
const CursorTTL = 10 * time.Second

type CursorSample struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// CursorBoard keeps only the latest sample per user.
type CursorBoard struct {
	mu      sync.RWMutex
	samples map[string]CursorSample
	ttl     time.Duration
}

func NewCursorBoard() *CursorBoard {
	return &CursorBoard{
		samples: make(map[string]CursorSample),
		ttl:     CursorTTL,
	}
}

// Put supersedes the user's previous sample unless that one is newer.
func (b *CursorBoard) Put(sample CursorSample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.samples[sample.UserID]; ok && prev.Timestamp.After(sample.Timestamp) {
		return false
	}

	b.samples[sample.UserID] = sample
	return true
}

func (b *CursorBoard) Remove(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.samples, userID)
}

// Visible returns samples younger than the TTL, ordered by user id.
func (b *CursorBoard) Visible(now time.Time) []CursorSample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]CursorSample, 0, len(b.samples))
	for _, s := range b.samples {
		if now.Sub(s.Timestamp) > b.ttl {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b CursorSample) int {
		return strings.Compare(a.UserID, b.UserID)
	})

	return out
}
