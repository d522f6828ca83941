package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/animewatch/internal/catalog/store"
	"github.com/example/animewatch/internal/platform/analytics"
	"github.com/example/animewatch/internal/platform/api"
	"github.com/example/animewatch/internal/platform/auth"
)

// ListShows handles GET /api/anime. ?type= filters by show type.
func ListShows(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shows, err := cs.ListShows(r.Context(), r.URL.Query().Get("type"))
		if err != nil {
			api.Internal(w, "")
			return
		}
		if shows == nil {
			shows = []store.ShowSummary{}
		}
		api.WriteJSON(w, http.StatusOK, shows)
	}
}

// GetShow handles GET /api/anime/{show_id}.
func GetShow(cs store.CatalogStore, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showID, ok := showIDParam(w, r)
		if !ok {
			return
		}

		detail, err := cs.GetShowDetail(r.Context(), showID)
		if err != nil {
			writeCatalogError(w, err)
			return
		}

		viewer, _ := auth.UserIDFromContext(r.Context())
		events.Publish(analytics.SubjectShowViewed, "show_viewed", viewer, map[string]any{
			"show_id": showID,
		})
		api.WriteJSON(w, http.StatusOK, detail)
	}
}

// ListFeatured handles GET /api/anime/featured.
func ListFeatured(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		featured, err := cs.ListFeatured(r.Context())
		if err != nil {
			api.Internal(w, "")
			return
		}
		if featured == nil {
			featured = []store.FeaturedShow{}
		}
		api.WriteJSON(w, http.StatusOK, featured)
	}
}

// ListGenres handles GET /api/genres.
func ListGenres(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		genres, err := cs.ListGenres(r.Context())
		if err != nil {
			api.Internal(w, "")
			return
		}
		if genres == nil {
			genres = []store.Genre{}
		}
		api.WriteJSON(w, http.StatusOK, genres)
	}
}

func showIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "show_id")), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "INVALID_ID", "show_id must be a positive integer", "", nil)
		return 0, false
	}
	return id, true
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "show not found", "")
	case errors.Is(err, store.ErrValidation):
		api.BadRequest(w, "INVALID_INPUT", err.Error(), "", nil)
	default:
		api.Internal(w, "")
	}
}
