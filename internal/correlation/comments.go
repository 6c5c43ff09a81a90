package correlation

import (
	"slices"
	"sync"

	"github.com/sharetube/review/internal/domain"
	"golang.org/x/exp/maps"
)

// CommentSet is the comment forest for one asset. Top-level comments own
// replies one level deep. Adding a comment whose id is already present is a
// no-op, so remote redelivery never duplicates anything.
type CommentSet struct {
	mu   sync.RWMutex
	byID map[string]domain.Comment
}

func NewCommentSet() *CommentSet {
	return &CommentSet{
		byID: make(map[string]domain.Comment),
	}
}

// Add stores c and reports whether it was new. A reply whose parent has not
// arrived yet is kept; a reply to a reply is rejected.
func (s *CommentSet) Add(c domain.Comment) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; ok {
		return false, nil
	}

	if c.IsReply() {
		if parent, ok := s.byID[*c.ParentID]; ok && parent.IsReply() {
			return false, ErrNestedReply
		}
	}

	s.byID[c.ID] = c.Clone()
	return true, nil
}

// Delete removes the comment and every reply pointing at it.
// It returns the removed ids, the comment's own id first.
func (s *CommentSet) Delete(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return nil, ErrCommentNotFound
	}

	removed := []string{id}
	delete(s.byID, id)
	for replyID, c := range s.byID {
		if c.IsReply() && *c.ParentID == id {
			removed = append(removed, replyID)
			delete(s.byID, replyID)
		}
	}

	slices.Sort(removed[1:])
	return removed, nil
}

func (s *CommentSet) Get(id string) (domain.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return domain.Comment{}, false
	}
	return c.Clone(), true
}

func (s *CommentSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.byID)
}

// Sorted returns every comment in list-view order.
func (s *CommentSet) Sorted() []domain.Comment {
	return Sort(s.snapshot())
}

// TopLevel returns the thread roots in list-view order.
func (s *CommentSet) TopLevel() []domain.Comment {
	all := s.snapshot()
	roots := all[:0]
	for _, c := range all {
		if !c.IsReply() {
			roots = append(roots, c)
		}
	}
	return Sort(roots)
}

// Replies returns the replies of parentID, oldest first.
func (s *CommentSet) Replies(parentID string) []domain.Comment {
	all := s.snapshot()
	replies := make([]domain.Comment, 0)
	for _, c := range all {
		if c.IsReply() && *c.ParentID == parentID {
			replies = append(replies, c)
		}
	}
	slices.SortStableFunc(replies, func(a, b domain.Comment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return replies
}

func (s *CommentSet) Markers(duration float64) []MarkerGroup {
	return Markers(s.snapshot(), duration)
}

// snapshot is ordered by id so that downstream stable sorts are deterministic.
func (s *CommentSet) snapshot() []domain.Comment {
	s.mu.RLock()
	ids := maps.Keys(s.byID)
	slices.Sort(ids)
	out := make([]domain.Comment, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	s.mu.RUnlock()

	return out
}
