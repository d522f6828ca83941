package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCommentStore persists comments and reactions in Postgres.
type PostgresCommentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCommentStore creates a store backed by Postgres.
func NewPostgresCommentStore(pool *pgxpool.Pool) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool}
}

// Reaction aggregates are joined in one grouped subquery so the whole
// page costs a single scan of the matching reaction rows, not one
// correlated subquery per comment. $2 is the viewer (nullable uuid).
const commentSelect = `
SELECT
	c.id, c.show_id, c.parent_id, c.comment_text, c.created_at, c.edited_at,
	u.id::text, u.username, COALESCE(u.picture_url, ''),
	COALESCE(r.like_count, 0), COALESCE(r.dislike_count, 0),
	COALESCE(r.liked_by_viewer, FALSE), COALESCE(r.disliked_by_viewer, FALSE)
FROM comments c
JOIN users u ON u.id = c.user_id
LEFT JOIN (
	SELECT comment_id,
	       COUNT(*) FILTER (WHERE type = 1)  AS like_count,
	       COUNT(*) FILTER (WHERE type = -1) AS dislike_count,
	       BOOL_OR(type = 1  AND user_id = $2::uuid) AS liked_by_viewer,
	       BOOL_OR(type = -1 AND user_id = $2::uuid) AS disliked_by_viewer
	FROM comment_reactions
	GROUP BY comment_id
) r ON r.comment_id = c.id`

func (s *PostgresCommentStore) ListPage(ctx context.Context, showID int64, sort Sort, page, pageSize int, viewerID *string) ([]Comment, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	var orderBy string
	switch sort {
	case SortOldest:
		orderBy = "c.created_at ASC, c.id ASC"
	case SortTop:
		// Ties broken by recency then id so the order is deterministic.
		orderBy = "COALESCE(r.like_count, 0) DESC, c.created_at DESC, c.id DESC"
	default:
		orderBy = "c.created_at DESC, c.id DESC"
	}

	q := fmt.Sprintf("%s\nWHERE c.show_id = $1\nORDER BY %s\nLIMIT $3 OFFSET $4", commentSelect, orderBy)
	rows, err := s.pool.Query(ctx, q, showID, viewerParam(viewerID), pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Comment, 0, pageSize)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCommentStore) Create(ctx context.Context, showID int64, userID, text string, parentID *int64) (Comment, error) {
	text, err := validateText(text)
	if err != nil {
		return Comment{}, err
	}

	if parentID != nil {
		var parentShow int64
		err := s.pool.QueryRow(ctx, `SELECT show_id FROM comments WHERE id = $1`, *parentID).Scan(&parentShow)
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, fmt.Errorf("%w: parent comment does not exist", ErrValidation)
		}
		if err != nil {
			return Comment{}, err
		}
		if parentShow != showID {
			return Comment{}, fmt.Errorf("%w: parent comment belongs to another show", ErrValidation)
		}
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
INSERT INTO comments (show_id, user_id, comment_text, parent_id)
VALUES ($1, $2::uuid, $3, $4)
RETURNING id`, showID, userID, text, parentID).Scan(&id)
	if err != nil {
		return Comment{}, err
	}
	return s.getByID(ctx, id, &userID)
}

func (s *PostgresCommentStore) Edit(ctx context.Context, commentID int64, userID, text string) (Comment, error) {
	text, err := validateText(text)
	if err != nil {
		return Comment{}, err
	}
	if err := s.checkAuthor(ctx, s.pool, commentID, userID); err != nil {
		return Comment{}, err
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE comments SET comment_text = $1, edited_at = now() WHERE id = $2`,
		text, commentID)
	if err != nil {
		return Comment{}, err
	}
	return s.getByID(ctx, commentID, &userID)
}

// Delete removes the comment's whole subtree in one transaction:
// breadth-first walk over parent_id edges, then reactions, then the
// comments themselves so referential constraints hold throughout.
func (s *PostgresCommentStore) Delete(ctx context.Context, commentID int64, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.checkAuthor(ctx, tx, commentID, userID); err != nil {
		return err
	}

	ids := []int64{commentID}
	frontier := []int64{commentID}
	for len(frontier) > 0 {
		rows, err := tx.Query(ctx, `SELECT id FROM comments WHERE parent_id = ANY($1)`, frontier)
		if err != nil {
			return err
		}
		var next []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			next = append(next, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		ids = append(ids, next...)
		frontier = next
	}

	if _, err := tx.Exec(ctx, `DELETE FROM comment_reactions WHERE comment_id = ANY($1)`, ids); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE id = ANY($1)`, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresCommentStore) Toggle(ctx context.Context, commentID int64, userID string, t ReactionType) (ReactionSummary, error) {
	if t != ReactionLike && t != ReactionDislike {
		return ReactionSummary{}, fmt.Errorf("%w: reaction type must be 1 or -1", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ReactionSummary{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, commentID).Scan(&exists); err != nil {
		return ReactionSummary{}, err
	}
	if !exists {
		return ReactionSummary{}, ErrNotFound
	}

	var current ReactionType
	err = tx.QueryRow(ctx,
		`SELECT type FROM comment_reactions WHERE user_id = $1::uuid AND comment_id = $2`,
		userID, commentID).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		current = 0
	case err != nil:
		return ReactionSummary{}, err
	}

	if current == t {
		// Same reaction again: back to neutral.
		_, err = tx.Exec(ctx,
			`DELETE FROM comment_reactions WHERE user_id = $1::uuid AND comment_id = $2`,
			userID, commentID)
	} else {
		// New or switched reaction; the composite key keeps it to one row.
		_, err = tx.Exec(ctx, `
INSERT INTO comment_reactions (user_id, comment_id, type)
VALUES ($1::uuid, $2, $3)
ON CONFLICT (user_id, comment_id) DO UPDATE SET type = EXCLUDED.type`,
			userID, commentID, t)
	}
	if err != nil {
		return ReactionSummary{}, err
	}

	var sum ReactionSummary
	err = tx.QueryRow(ctx, `
SELECT
	COUNT(*) FILTER (WHERE type = 1),
	COUNT(*) FILTER (WHERE type = -1),
	COALESCE(BOOL_OR(type = 1  AND user_id = $2::uuid), FALSE),
	COALESCE(BOOL_OR(type = -1 AND user_id = $2::uuid), FALSE)
FROM comment_reactions WHERE comment_id = $1`,
		commentID, userID).Scan(&sum.LikeCount, &sum.DislikeCount, &sum.LikedByMe, &sum.DislikedByMe)
	if err != nil {
		return ReactionSummary{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ReactionSummary{}, err
	}
	return sum, nil
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresCommentStore) checkAuthor(ctx context.Context, q execQuerier, commentID int64, userID string) error {
	var authorID string
	err := q.QueryRow(ctx, `SELECT user_id::text FROM comments WHERE id = $1`, commentID).Scan(&authorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if authorID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *PostgresCommentStore) getByID(ctx context.Context, id int64, viewerID *string) (Comment, error) {
	row := s.pool.QueryRow(ctx, commentSelect+"\nWHERE c.id = $1", id, viewerParam(viewerID))
	c, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	return c, err
}

func scanComment(row pgx.Row) (Comment, error) {
	var c Comment
	err := row.Scan(
		&c.ID, &c.ShowID, &c.ParentID, &c.Text, &c.CreatedAt, &c.EditedAt,
		&c.Author.ID, &c.Author.Username, &c.Author.AvatarURL,
		&c.LikeCount, &c.DislikeCount, &c.LikedByMe, &c.DislikedByMe,
	)
	return c, err
}

func viewerParam(viewerID *string) any {
	if viewerID == nil {
		return nil
	}
	return *viewerID
}
