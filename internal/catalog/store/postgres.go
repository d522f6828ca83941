package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalogStore is the production Postgres-backed implementation.
type PostgresCatalogStore struct {
	db *pgxpool.Pool
}

func NewPostgresCatalogStore(db *pgxpool.Pool) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: db}
}

// Genres come back aggregated per show so the listing is two joins in
// one query instead of a lookup per row.
const showSelect = `
SELECT s.id, s.title, s.release_date, s.description, s.status, s.type,
       s.thumbnail, COALESCE(s.banner_url, ''), s.featured,
       COALESCE(g.names, '{}')
FROM shows s
LEFT JOIN (
	SELECT sg.show_id, array_agg(ge.name ORDER BY ge.name) AS names
	FROM show_genres sg
	JOIN genres ge ON ge.id = sg.genre_id
	GROUP BY sg.show_id
) g ON g.show_id = s.id`

func (s *PostgresCatalogStore) ListShows(ctx context.Context, typeFilter string) ([]ShowSummary, error) {
	q := showSelect
	args := []any{}
	if t := strings.TrimSpace(typeFilter); t != "" {
		q += "\nWHERE lower(s.type) = lower($1)"
		args = append(args, t)
	}
	q += "\nORDER BY s.created_at DESC, s.id DESC"

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ShowSummary
	for rows.Next() {
		sum, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) GetShowDetail(ctx context.Context, showID int64) (ShowDetail, error) {
	sum, err := s.getShow(ctx, s.db, showID)
	if err != nil {
		return ShowDetail{}, err
	}
	detail := ShowDetail{ShowSummary: sum, Seasons: []Season{}}

	err = s.db.QueryRow(ctx, `SELECT video_url FROM movie_urls WHERE show_id = $1`, showID).Scan(&detail.MovieURL)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return ShowDetail{}, err
	}

	titles := map[int]string{}
	rows, err := s.db.Query(ctx,
		`SELECT season_number, season_title FROM seasons WHERE show_id = $1 ORDER BY season_number`, showID)
	if err != nil {
		return ShowDetail{}, err
	}
	for rows.Next() {
		var n int
		var t string
		if err := rows.Scan(&n, &t); err != nil {
			rows.Close()
			return ShowDetail{}, err
		}
		titles[n] = t
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ShowDetail{}, err
	}

	rows, err = s.db.Query(ctx, `
SELECT id, season_number, episode_number, episode_title, video_url, position
FROM episodes
WHERE show_id = $1
ORDER BY season_number, position, episode_number`, showID)
	if err != nil {
		return ShowDetail{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var ep Episode
		if err := rows.Scan(&ep.ID, &ep.SeasonNumber, &ep.EpisodeNumber, &ep.Title, &ep.VideoURL, &ep.Position); err != nil {
			return ShowDetail{}, err
		}
		last := len(detail.Seasons) - 1
		if last < 0 || detail.Seasons[last].SeasonNumber != ep.SeasonNumber {
			detail.Seasons = append(detail.Seasons, Season{
				SeasonNumber: ep.SeasonNumber,
				SeasonTitle:  titles[ep.SeasonNumber],
				Episodes:     []Episode{},
			})
			last++
		}
		detail.Seasons[last].Episodes = append(detail.Seasons[last].Episodes, ep)
	}
	return detail, rows.Err()
}

func (s *PostgresCatalogStore) ListFeatured(ctx context.Context) ([]FeaturedShow, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, title, description, COALESCE(NULLIF(banner_url, ''), thumbnail), type
FROM shows
WHERE featured
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeaturedShow
	for rows.Next() {
		var f FeaturedShow
		if err := rows.Scan(&f.ID, &f.Title, &f.Description, &f.Banner, &f.Type); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) CreateShow(ctx context.Context, in ShowInput) (ShowSummary, error) {
	in, err := validateShow(in)
	if err != nil {
		return ShowSummary{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ShowSummary{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
INSERT INTO shows (title, release_date, description, status, type, thumbnail, banner_url)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
RETURNING id`,
		in.Title, in.ReleaseDate, in.Description, in.Status, in.Type, in.Thumbnail, in.BannerURL).Scan(&id)
	if err != nil {
		return ShowSummary{}, err
	}

	if err := replaceShowGenres(ctx, tx, id, in.GenreIDs); err != nil {
		return ShowSummary{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ShowSummary{}, err
	}
	return s.getShow(ctx, s.db, id)
}

func (s *PostgresCatalogStore) UpdateShow(ctx context.Context, showID int64, in ShowInput) (ShowSummary, error) {
	in, err := validateShow(in)
	if err != nil {
		return ShowSummary{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ShowSummary{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE shows
SET title = $2, release_date = $3, description = $4, status = $5, type = $6,
    thumbnail = $7, banner_url = NULLIF($8, '')
WHERE id = $1`,
		showID, in.Title, in.ReleaseDate, in.Description, in.Status, in.Type, in.Thumbnail, in.BannerURL)
	if err != nil {
		return ShowSummary{}, err
	}
	if tag.RowsAffected() == 0 {
		return ShowSummary{}, ErrNotFound
	}

	if err := replaceShowGenres(ctx, tx, showID, in.GenreIDs); err != nil {
		return ShowSummary{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ShowSummary{}, err
	}
	return s.getShow(ctx, s.db, showID)
}

// DeleteShow removes the show and everything hanging off it. Comments
// and their reactions have no cascade, so they go explicitly first;
// genre links, seasons, episodes and the movie url follow via FK
// cascade when the show row goes.
func (s *PostgresCatalogStore) DeleteShow(ctx context.Context, showID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
DELETE FROM comment_reactions
WHERE comment_id IN (SELECT id FROM comments WHERE show_id = $1)`, showID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE show_id = $1`, showID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM shows WHERE id = $1`, showID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *PostgresCatalogStore) SetMovieURL(ctx context.Context, showID int64, videoURL string) error {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		_, err := s.db.Exec(ctx, `DELETE FROM movie_urls WHERE show_id = $1`, showID)
		return err
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO movie_urls (show_id, video_url)
VALUES ($1, $2)
ON CONFLICT (show_id) DO UPDATE SET video_url = EXCLUDED.video_url`, showID, videoURL)
	return err
}

func (s *PostgresCatalogStore) AddEpisode(ctx context.Context, showID int64, in EpisodeInput) (Episode, error) {
	if in.SeasonNumber < 1 || in.EpisodeNumber < 1 {
		return Episode{}, fmt.Errorf("%w: season and episode numbers start at 1", ErrValidation)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Episode{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM shows WHERE id = $1)`, showID).Scan(&exists); err != nil {
		return Episode{}, err
	}
	if !exists {
		return Episode{}, ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO seasons (show_id, season_number, season_title)
VALUES ($1, $2, $3)
ON CONFLICT (show_id, season_number) DO UPDATE
SET season_title = CASE WHEN EXCLUDED.season_title <> '' THEN EXCLUDED.season_title ELSE seasons.season_title END`,
		showID, in.SeasonNumber, strings.TrimSpace(in.SeasonTitle)); err != nil {
		return Episode{}, err
	}

	ep := Episode{SeasonNumber: in.SeasonNumber, EpisodeNumber: in.EpisodeNumber, Title: in.Title, VideoURL: in.VideoURL}
	err = tx.QueryRow(ctx, `
INSERT INTO episodes (show_id, season_number, episode_number, episode_title, video_url, position)
VALUES ($1, $2, $3, $4, $5,
	COALESCE((SELECT MAX(position) + 1 FROM episodes WHERE show_id = $1 AND season_number = $2), 0))
RETURNING id, position`,
		showID, in.SeasonNumber, in.EpisodeNumber, in.Title, in.VideoURL).Scan(&ep.ID, &ep.Position)
	if err != nil {
		return Episode{}, err
	}
	return ep, tx.Commit(ctx)
}

func (s *PostgresCatalogStore) DeleteEpisode(ctx context.Context, episodeID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM episodes WHERE id = $1`, episodeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderEpisodes rewrites positions within one season to match the
// given id order. Ids outside the season are rejected wholesale.
func (s *PostgresCatalogStore) ReorderEpisodes(ctx context.Context, showID int64, seasonNumber int, orderedIDs []int64) error {
	if len(orderedIDs) == 0 {
		return fmt.Errorf("%w: episode id list is empty", ErrValidation)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM episodes WHERE show_id = $1 AND season_number = $2 AND id = ANY($3)`,
		showID, seasonNumber, orderedIDs).Scan(&count); err != nil {
		return err
	}
	if count != len(orderedIDs) {
		return fmt.Errorf("%w: ids do not all belong to the season", ErrValidation)
	}

	for pos, id := range orderedIDs {
		if _, err := tx.Exec(ctx, `UPDATE episodes SET position = $2 WHERE id = $1`, id, pos); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresCatalogStore) GetFeaturedIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM shows WHERE featured ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetFeatured replaces the whole featured set in one transaction.
func (s *PostgresCatalogStore) SetFeatured(ctx context.Context, showIDs []int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if len(showIDs) > 0 {
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM shows WHERE id = ANY($1)`, showIDs).Scan(&count); err != nil {
			return err
		}
		if count != len(showIDs) {
			return ErrNotFound
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE shows SET featured = false WHERE featured`); err != nil {
		return err
	}
	if len(showIDs) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE shows SET featured = true WHERE id = ANY($1)`, showIDs); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresCatalogStore) ListGenres(ctx context.Context) ([]Genre, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM genres ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Genre
	for rows.Next() {
		var g Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) CreateGenre(ctx context.Context, name string) (Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Genre{}, fmt.Errorf("%w: genre name is required", ErrValidation)
	}
	g := Genre{Name: name}
	err := s.db.QueryRow(ctx, `
INSERT INTO genres (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`, name).Scan(&g.ID)
	return g, err
}

func (s *PostgresCatalogStore) DeleteGenre(ctx context.Context, genreID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM show_genres WHERE genre_id = $1`, genreID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM genres WHERE id = $1`, genreID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresCatalogStore) getShow(ctx context.Context, q querier, showID int64) (ShowSummary, error) {
	sum, err := scanShow(q.QueryRow(ctx, showSelect+"\nWHERE s.id = $1", showID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ShowSummary{}, ErrNotFound
	}
	return sum, err
}

func scanShow(row pgx.Row) (ShowSummary, error) {
	var sum ShowSummary
	err := row.Scan(&sum.ID, &sum.Title, &sum.ReleaseDate, &sum.Description, &sum.Status,
		&sum.Type, &sum.Thumbnail, &sum.BannerURL, &sum.Featured, &sum.Genres)
	if sum.Genres == nil {
		sum.Genres = []string{}
	}
	return sum, err
}

func replaceShowGenres(ctx context.Context, tx pgx.Tx, showID int64, genreIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM show_genres WHERE show_id = $1`, showID); err != nil {
		return err
	}
	for _, gid := range genreIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO show_genres (show_id, genre_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			showID, gid); err != nil {
			return err
		}
	}
	return nil
}

func validateShow(in ShowInput) (ShowInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(in.Type) == "" {
		in.Type = "TV"
	}
	return in, nil
}
