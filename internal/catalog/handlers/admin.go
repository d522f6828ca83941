package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/animewatch/internal/catalog/store"
	"github.com/example/animewatch/internal/platform/api"
)

type featuredRequest struct {
	ShowIDs []int64 `json:"show_ids"`
}

type movieURLRequest struct {
	VideoURL string `json:"video_url"`
}

type genreRequest struct {
	Name string `json:"name"`
}

type reorderRequest struct {
	SeasonNumber int     `json:"season_number"`
	EpisodeIDs   []int64 `json:"episode_ids"`
}

// CreateShow handles POST /api/admin/anime.
func CreateShow(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in store.ShowInput
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		created, err := cs.CreateShow(r.Context(), in)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// UpdateShow handles PUT /api/admin/anime/{show_id}.
func UpdateShow(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showID, ok := showIDParam(w, r)
		if !ok {
			return
		}
		var in store.ShowInput
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		updated, err := cs.UpdateShow(r.Context(), showID, in)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, updated)
	}
}

// DeleteShow handles DELETE /api/admin/anime/{show_id}.
func DeleteShow(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showID, ok := showIDParam(w, r)
		if !ok {
			return
		}
		if err := cs.DeleteShow(r.Context(), showID); err != nil {
			writeCatalogError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SetMovieURL handles PUT /api/admin/anime/{show_id}/movie-url. An
// empty video_url clears the mapping.
func SetMovieURL(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showID, ok := showIDParam(w, r)
		if !ok {
			return
		}
		var req movieURLRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if err := cs.SetMovieURL(r.Context(), showID, req.VideoURL); err != nil {
			writeCatalogError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AddEpisode handles POST /api/admin/anime/{show_id}/episodes.
func AddEpisode(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showID, ok := showIDParam(w, r)
		if !ok {
			return
		}
		var in store.EpisodeInput
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		ep, err := cs.AddEpisode(r.Context(), showID, in)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, ep)
	}
}

// DeleteEpisode handles DELETE /api/admin/episodes/{episode_id}.
func DeleteEpisode(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "episode_id")), 10, 64)
		if err != nil || id <= 0 {
			api.BadRequest(w, "INVALID_ID", "episode_id must be a positive integer", "", nil)
			return
		}
		if err := cs.DeleteEpisode(r.Context(), id); err != nil {
			writeCatalogError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReorderEpisodes handles PUT /api/admin/anime/{show_id}/episodes/order.
func ReorderEpisodes(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showID, ok := showIDParam(w, r)
		if !ok {
			return
		}
		var req reorderRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if err := cs.ReorderEpisodes(r.Context(), showID, req.SeasonNumber, req.EpisodeIDs); err != nil {
			writeCatalogError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetFeatured handles GET /api/admin/featured.
func GetFeatured(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := cs.GetFeaturedIDs(r.Context())
		if err != nil {
			api.Internal(w, "")
			return
		}
		if ids == nil {
			ids = []int64{}
		}
		api.WriteJSON(w, http.StatusOK, featuredRequest{ShowIDs: ids})
	}
}

// SetFeatured handles POST /api/admin/featured. The posted set replaces
// the current one wholesale.
func SetFeatured(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req featuredRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if err := cs.SetFeatured(r.Context(), req.ShowIDs); err != nil {
			writeCatalogError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CreateGenre handles POST /api/admin/genres.
func CreateGenre(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req genreRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		g, err := cs.CreateGenre(r.Context(), req.Name)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, g)
	}
}

// DeleteGenre handles DELETE /api/admin/genres/{genre_id}.
func DeleteGenre(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "genre_id")), 10, 64)
		if err != nil || id <= 0 {
			api.BadRequest(w, "INVALID_ID", "genre_id must be a positive integer", "", nil)
			return
		}
		if err := cs.DeleteGenre(r.Context(), id); err != nil {
			writeCatalogError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
