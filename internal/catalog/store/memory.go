package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// InMemoryCatalogStore implements CatalogStore for tests and database-
// free development runs. Semantics mirror the Postgres store.
type InMemoryCatalogStore struct {
	mu       sync.RWMutex
	nextID   int64
	shows    map[int64]ShowSummary
	genreIDs map[int64][]int64 // show -> genre ids
	seasons  map[int64]map[int]string
	episodes map[int64]Episode // episode id -> episode (ShowID packed below)
	epShow   map[int64]int64   // episode id -> show id
	movies   map[int64]string
	genres   map[int64]Genre
}

func NewInMemoryCatalogStore() *InMemoryCatalogStore {
	return &InMemoryCatalogStore{
		shows:    make(map[int64]ShowSummary),
		genreIDs: make(map[int64][]int64),
		seasons:  make(map[int64]map[int]string),
		episodes: make(map[int64]Episode),
		epShow:   make(map[int64]int64),
		movies:   make(map[int64]string),
		genres:   make(map[int64]Genre),
	}
}

func (s *InMemoryCatalogStore) ListShows(_ context.Context, typeFilter string) ([]ShowSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := strings.TrimSpace(typeFilter)
	var out []ShowSummary
	for _, sum := range s.shows {
		if t != "" && !strings.EqualFold(sum.Type, t) {
			continue
		}
		out = append(out, s.withGenres(sum))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *InMemoryCatalogStore) GetShowDetail(_ context.Context, showID int64) (ShowDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.shows[showID]
	if !ok {
		return ShowDetail{}, ErrNotFound
	}
	detail := ShowDetail{ShowSummary: s.withGenres(sum), Seasons: []Season{}, MovieURL: s.movies[showID]}

	var eps []Episode
	for id, ep := range s.episodes {
		if s.epShow[id] == showID {
			eps = append(eps, ep)
		}
	}
	sort.Slice(eps, func(i, j int) bool {
		if eps[i].SeasonNumber != eps[j].SeasonNumber {
			return eps[i].SeasonNumber < eps[j].SeasonNumber
		}
		if eps[i].Position != eps[j].Position {
			return eps[i].Position < eps[j].Position
		}
		return eps[i].EpisodeNumber < eps[j].EpisodeNumber
	})
	for _, ep := range eps {
		last := len(detail.Seasons) - 1
		if last < 0 || detail.Seasons[last].SeasonNumber != ep.SeasonNumber {
			detail.Seasons = append(detail.Seasons, Season{
				SeasonNumber: ep.SeasonNumber,
				SeasonTitle:  s.seasons[showID][ep.SeasonNumber],
				Episodes:     []Episode{},
			})
			last++
		}
		detail.Seasons[last].Episodes = append(detail.Seasons[last].Episodes, ep)
	}
	return detail, nil
}

func (s *InMemoryCatalogStore) ListFeatured(_ context.Context) ([]FeaturedShow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []FeaturedShow
	for _, sum := range s.shows {
		if !sum.Featured {
			continue
		}
		banner := sum.BannerURL
		if banner == "" {
			banner = sum.Thumbnail
		}
		out = append(out, FeaturedShow{
			ID: sum.ID, Title: sum.Title, Description: sum.Description, Banner: banner, Type: sum.Type,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryCatalogStore) CreateShow(_ context.Context, in ShowInput) (ShowSummary, error) {
	in, err := validateShow(in)
	if err != nil {
		return ShowSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sum := ShowSummary{
		ID: s.nextID, Title: in.Title, ReleaseDate: in.ReleaseDate, Description: in.Description,
		Status: in.Status, Type: in.Type, Thumbnail: in.Thumbnail, BannerURL: in.BannerURL,
	}
	s.shows[sum.ID] = sum
	s.genreIDs[sum.ID] = append([]int64(nil), in.GenreIDs...)
	return s.withGenres(sum), nil
}

func (s *InMemoryCatalogStore) UpdateShow(_ context.Context, showID int64, in ShowInput) (ShowSummary, error) {
	in, err := validateShow(in)
	if err != nil {
		return ShowSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sum, ok := s.shows[showID]
	if !ok {
		return ShowSummary{}, ErrNotFound
	}
	sum.Title, sum.ReleaseDate, sum.Description = in.Title, in.ReleaseDate, in.Description
	sum.Status, sum.Type, sum.Thumbnail, sum.BannerURL = in.Status, in.Type, in.Thumbnail, in.BannerURL
	s.shows[showID] = sum
	s.genreIDs[showID] = append([]int64(nil), in.GenreIDs...)
	return s.withGenres(sum), nil
}

func (s *InMemoryCatalogStore) DeleteShow(_ context.Context, showID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shows[showID]; !ok {
		return ErrNotFound
	}
	delete(s.shows, showID)
	delete(s.genreIDs, showID)
	delete(s.seasons, showID)
	delete(s.movies, showID)
	for id, sid := range s.epShow {
		if sid == showID {
			delete(s.episodes, id)
			delete(s.epShow, id)
		}
	}
	return nil
}

func (s *InMemoryCatalogStore) SetMovieURL(_ context.Context, showID int64, videoURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		delete(s.movies, showID)
		return nil
	}
	s.movies[showID] = videoURL
	return nil
}

func (s *InMemoryCatalogStore) AddEpisode(_ context.Context, showID int64, in EpisodeInput) (Episode, error) {
	if in.SeasonNumber < 1 || in.EpisodeNumber < 1 {
		return Episode{}, fmt.Errorf("%w: season and episode numbers start at 1", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shows[showID]; !ok {
		return Episode{}, ErrNotFound
	}
	if s.seasons[showID] == nil {
		s.seasons[showID] = make(map[int]string)
	}
	if t := strings.TrimSpace(in.SeasonTitle); t != "" || s.seasons[showID][in.SeasonNumber] == "" {
		s.seasons[showID][in.SeasonNumber] = strings.TrimSpace(in.SeasonTitle)
	}

	pos := 0
	for id, ep := range s.episodes {
		if s.epShow[id] == showID && ep.SeasonNumber == in.SeasonNumber && ep.Position >= pos {
			pos = ep.Position + 1
		}
	}

	s.nextID++
	ep := Episode{
		ID: s.nextID, SeasonNumber: in.SeasonNumber, EpisodeNumber: in.EpisodeNumber,
		Title: in.Title, VideoURL: in.VideoURL, Position: pos,
	}
	s.episodes[ep.ID] = ep
	s.epShow[ep.ID] = showID
	return ep, nil
}

func (s *InMemoryCatalogStore) DeleteEpisode(_ context.Context, episodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.episodes[episodeID]; !ok {
		return ErrNotFound
	}
	delete(s.episodes, episodeID)
	delete(s.epShow, episodeID)
	return nil
}

func (s *InMemoryCatalogStore) ReorderEpisodes(_ context.Context, showID int64, seasonNumber int, orderedIDs []int64) error {
	if len(orderedIDs) == 0 {
		return fmt.Errorf("%w: episode id list is empty", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range orderedIDs {
		ep, ok := s.episodes[id]
		if !ok || s.epShow[id] != showID || ep.SeasonNumber != seasonNumber {
			return fmt.Errorf("%w: ids do not all belong to the season", ErrValidation)
		}
	}
	for pos, id := range orderedIDs {
		ep := s.episodes[id]
		ep.Position = pos
		s.episodes[id] = ep
	}
	return nil
}

func (s *InMemoryCatalogStore) GetFeaturedIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, sum := range s.shows {
		if sum.Featured {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *InMemoryCatalogStore) SetFeatured(_ context.Context, showIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range showIDs {
		if _, ok := s.shows[id]; !ok {
			return ErrNotFound
		}
	}
	for id, sum := range s.shows {
		sum.Featured = false
		s.shows[id] = sum
	}
	for _, id := range showIDs {
		sum := s.shows[id]
		sum.Featured = true
		s.shows[id] = sum
	}
	return nil
}

func (s *InMemoryCatalogStore) ListGenres(_ context.Context) ([]Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Genre
	for _, g := range s.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryCatalogStore) CreateGenre(_ context.Context, name string) (Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Genre{}, fmt.Errorf("%w: genre name is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.genres {
		if g.Name == name {
			return g, nil
		}
	}
	s.nextID++
	g := Genre{ID: s.nextID, Name: name}
	s.genres[g.ID] = g
	return g, nil
}

func (s *InMemoryCatalogStore) DeleteGenre(_ context.Context, genreID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.genres[genreID]; !ok {
		return ErrNotFound
	}
	delete(s.genres, genreID)
	for showID, ids := range s.genreIDs {
		kept := ids[:0]
		for _, id := range ids {
			if id != genreID {
				kept = append(kept, id)
			}
		}
		s.genreIDs[showID] = kept
	}
	return nil
}

func (s *InMemoryCatalogStore) withGenres(sum ShowSummary) ShowSummary {
	names := []string{}
	for _, gid := range s.genreIDs[sum.ID] {
		if g, ok := s.genres[gid]; ok {
			names = append(names, g.Name)
		}
	}
	sort.Strings(names)
	sum.Genres = names
	return sum
}
