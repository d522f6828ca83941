package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Sentinel errors mapped onto HTTP status codes by the handlers.
var (
	ErrNotFound   = errors.New("comment not found")
	ErrForbidden  = errors.New("not the comment author")
	ErrValidation = errors.New("invalid comment input")
)

// Sort selects the ordering of a comment page.
type Sort string

const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
	SortTop    Sort = "top"
)

// ParseSort maps a query parameter onto a Sort, defaulting to newest.
func ParseSort(s string) Sort {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortOldest:
		return SortOldest
	case SortTop:
		return SortTop
	default:
		return SortNewest
	}
}

// ReactionType is a like (+1) or dislike (-1). Absence of a reaction
// row means neutral.
type ReactionType int16

const (
	ReactionLike    ReactionType = 1
	ReactionDislike ReactionType = -1
)

// Author is the denormalized identity attached to every comment row.
type Author struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ReactionSummary carries read-time aggregates for one comment. The
// by-me flags are always false for anonymous viewers.
type ReactionSummary struct {
	LikeCount    int  `json:"like_count"`
	DislikeCount int  `json:"dislike_count"`
	LikedByMe    bool `json:"liked_by_me"`
	DislikedByMe bool `json:"disliked_by_me"`
}

// Comment is one comment row together with its author and aggregates.
type Comment struct {
	ID        int64      `json:"id"`
	ShowID    int64      `json:"show_id"`
	ParentID  *int64     `json:"parent_id,omitempty"`
	Text      string     `json:"comment_text"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Author    Author     `json:"author"`
	ReactionSummary
}

// CommentStore defines the contract for comment persistence.
//
// Counts and by-me flags are always computed from the reactions table at
// read time; nothing is cached, so they can never drift.
type CommentStore interface {
	// ListPage returns one offset page of a show's comments, replies
	// included, ordered by sort. viewerID may be nil for anonymous reads.
	ListPage(ctx context.Context, showID int64, sort Sort, page, pageSize int, viewerID *string) ([]Comment, error)
	// Create inserts a comment. A non-nil parentID must reference an
	// existing comment on the same show.
	Create(ctx context.Context, showID int64, userID, text string, parentID *int64) (Comment, error)
	// Edit replaces the text and stamps edited_at. Author only.
	Edit(ctx context.Context, commentID int64, userID, text string) (Comment, error)
	// Delete removes the comment, its whole reply subtree and every
	// reaction on it, atomically. Author only.
	Delete(ctx context.Context, commentID int64, userID string) error
	// Toggle flips the caller's reaction: same type again clears it,
	// the opposite type replaces it. Returns fresh aggregates.
	Toggle(ctx context.Context, commentID int64, userID string, t ReactionType) (ReactionSummary, error)
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrValidation
	}
	return text, nil
}
