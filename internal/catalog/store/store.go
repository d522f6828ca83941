package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("show not found")
	ErrValidation = errors.New("invalid catalog input")
)

// ShowSummary is one row of the public listing.
type ShowSummary struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Type        string   `json:"type"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	BannerURL   string   `json:"banner_url,omitempty"`
	Featured    bool     `json:"featured"`
	Genres      []string `json:"genres"`
}

type Episode struct {
	ID            int64  `json:"id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Title         string `json:"episode_title,omitempty"`
	VideoURL      string `json:"video_url,omitempty"`
	Position      int    `json:"position"`
}

// Season groups a show's episodes by season number.
type Season struct {
	SeasonNumber int       `json:"season_number"`
	SeasonTitle  string    `json:"season_title,omitempty"`
	Episodes     []Episode `json:"episodes"`
}

type ShowDetail struct {
	ShowSummary
	Seasons  []Season `json:"seasons"`
	MovieURL string   `json:"movie_url,omitempty"`
}

// FeaturedShow is one slide of the homepage carousel. Banner always
// holds a usable image: shows without a banner fall back to their
// thumbnail.
type FeaturedShow struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Banner      string `json:"banner"`
	Type        string `json:"type"`
}

type ShowInput struct {
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Type        string  `json:"type"`
	Thumbnail   string  `json:"thumbnail"`
	BannerURL   string  `json:"banner_url"`
	GenreIDs    []int64 `json:"genre_ids"`
}

type EpisodeInput struct {
	SeasonNumber  int    `json:"season_number"`
	SeasonTitle   string `json:"season_title"`
	EpisodeNumber int    `json:"episode_number"`
	Title         string `json:"episode_title"`
	VideoURL      string `json:"video_url"`
}

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CatalogStore defines all persistence operations for the catalog.
type CatalogStore interface {
	// Public reads
	ListShows(ctx context.Context, typeFilter string) ([]ShowSummary, error)
	GetShowDetail(ctx context.Context, showID int64) (ShowDetail, error)
	ListFeatured(ctx context.Context) ([]FeaturedShow, error)

	// Admin show writes
	CreateShow(ctx context.Context, in ShowInput) (ShowSummary, error)
	UpdateShow(ctx context.Context, showID int64, in ShowInput) (ShowSummary, error)
	DeleteShow(ctx context.Context, showID int64) error
	SetMovieURL(ctx context.Context, showID int64, videoURL string) error

	// Episodes
	AddEpisode(ctx context.Context, showID int64, in EpisodeInput) (Episode, error)
	DeleteEpisode(ctx context.Context, episodeID int64) error
	ReorderEpisodes(ctx context.Context, showID int64, seasonNumber int, orderedIDs []int64) error

	// Featured carousel management (replace-all)
	GetFeaturedIDs(ctx context.Context) ([]int64, error)
	SetFeatured(ctx context.Context, showIDs []int64) error

	// Genres
	ListGenres(ctx context.Context) ([]Genre, error)
	CreateGenre(ctx context.Context, name string) (Genre, error)
	DeleteGenre(ctx context.Context, genreID int64) error
}
