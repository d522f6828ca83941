package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryCommentStore implements CommentStore without a database. It
// backs handler tests and development runs; semantics mirror the
// Postgres store exactly.
type InMemoryCommentStore struct {
	mu        sync.RWMutex
	nextID    int64
	comments  map[int64]Comment
	reactions map[int64]map[string]ReactionType // commentID -> userID -> type
	authors   map[string]Author
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return &InMemoryCommentStore{
		comments:  make(map[int64]Comment),
		reactions: make(map[int64]map[string]ReactionType),
		authors:   make(map[string]Author),
	}
}

// RegisterAuthor records the identity attached to a user's comments.
// Unknown authors fall back to the bare user id.
func (s *InMemoryCommentStore) RegisterAuthor(a Author) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors[a.ID] = a
}

func (s *InMemoryCommentStore) ListPage(_ context.Context, showID int64, sortBy Sort, page, pageSize int, viewerID *string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	var all []Comment
	for _, c := range s.comments {
		if c.ShowID == showID {
			all = append(all, s.withAggregates(c, viewerID))
		}
	}

	switch sortBy {
	case SortOldest:
		sort.Slice(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.Before(all[j].CreatedAt)
			}
			return all[i].ID < all[j].ID
		})
	case SortTop:
		sort.Slice(all, func(i, j int) bool {
			if all[i].LikeCount != all[j].LikeCount {
				return all[i].LikeCount > all[j].LikeCount
			}
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			}
			return all[i].ID > all[j].ID
		})
	default:
		sort.Slice(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			}
			return all[i].ID > all[j].ID
		})
	}

	start := (page - 1) * pageSize
	if start >= len(all) {
		return []Comment{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *InMemoryCommentStore) Create(_ context.Context, showID int64, userID, text string, parentID *int64) (Comment, error) {
	text, err := validateText(text)
	if err != nil {
		return Comment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != nil {
		parent, ok := s.comments[*parentID]
		if !ok {
			return Comment{}, fmt.Errorf("%w: parent comment does not exist", ErrValidation)
		}
		if parent.ShowID != showID {
			return Comment{}, fmt.Errorf("%w: parent comment belongs to another show", ErrValidation)
		}
	}

	s.nextID++
	c := Comment{
		ID:        s.nextID,
		ShowID:    showID,
		ParentID:  parentID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		Author:    s.authorFor(userID),
	}
	s.comments[c.ID] = c
	return c, nil
}

func (s *InMemoryCommentStore) Edit(_ context.Context, commentID int64, userID, text string) (Comment, error) {
	text, err := validateText(text)
	if err != nil {
		return Comment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok {
		return Comment{}, ErrNotFound
	}
	if c.Author.ID != userID {
		return Comment{}, ErrForbidden
	}

	now := time.Now().UTC()
	c.Text = text
	c.EditedAt = &now
	s.comments[commentID] = c
	return s.withAggregates(c, &userID), nil
}

func (s *InMemoryCommentStore) Delete(_ context.Context, commentID int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok {
		return ErrNotFound
	}
	if c.Author.ID != userID {
		return ErrForbidden
	}

	ids := []int64{commentID}
	frontier := []int64{commentID}
	for len(frontier) > 0 {
		var next []int64
		for _, cand := range s.comments {
			if cand.ParentID == nil {
				continue
			}
			for _, fid := range frontier {
				if *cand.ParentID == fid {
					next = append(next, cand.ID)
					break
				}
			}
		}
		ids = append(ids, next...)
		frontier = next
	}

	for _, id := range ids {
		delete(s.reactions, id)
		delete(s.comments, id)
	}
	return nil
}

func (s *InMemoryCommentStore) Toggle(_ context.Context, commentID int64, userID string, t ReactionType) (ReactionSummary, error) {
	if t != ReactionLike && t != ReactionDislike {
		return ReactionSummary{}, fmt.Errorf("%w: reaction type must be 1 or -1", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[commentID]; !ok {
		return ReactionSummary{}, ErrNotFound
	}

	if s.reactions[commentID] == nil {
		s.reactions[commentID] = make(map[string]ReactionType)
	}
	if s.reactions[commentID][userID] == t {
		delete(s.reactions[commentID], userID)
	} else {
		s.reactions[commentID][userID] = t
	}

	return s.summarize(commentID, &userID), nil
}

func (s *InMemoryCommentStore) withAggregates(c Comment, viewerID *string) Comment {
	c.ReactionSummary = s.summarize(c.ID, viewerID)
	return c
}

func (s *InMemoryCommentStore) summarize(commentID int64, viewerID *string) ReactionSummary {
	var sum ReactionSummary
	for uid, t := range s.reactions[commentID] {
		switch t {
		case ReactionLike:
			sum.LikeCount++
			if viewerID != nil && uid == *viewerID {
				sum.LikedByMe = true
			}
		case ReactionDislike:
			sum.DislikeCount++
			if viewerID != nil && uid == *viewerID {
				sum.DislikedByMe = true
			}
		}
	}
	return sum
}

func (s *InMemoryCommentStore) authorFor(userID string) Author {
	if a, ok := s.authors[userID]; ok {
		return a
	}
	return Author{ID: userID, Username: userID}
}
