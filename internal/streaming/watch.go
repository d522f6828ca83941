// Package streaming hands out short-lived signed playback URLs and
// relays HLS traffic through the API so upstream video hosts never see
// the viewer directly.
package streaming

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/animewatch/internal/catalog/store"
	"github.com/example/animewatch/internal/platform/analytics"
	"github.com/example/animewatch/internal/platform/api"
	"github.com/example/animewatch/internal/platform/auth"
	"github.com/example/animewatch/internal/platform/signing"
)

const playbackTTL = 15 * time.Minute

type watchResponse struct {
	SignedPlaybackURL string    `json:"signed_playback_url"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// WatchEpisode handles GET /api/anime/{show_id}/episodes/{episode_id}/watch.
// The caller must be authenticated; the returned URL is bound to the
// viewer and expires after playbackTTL.
func WatchEpisode(cs store.CatalogStore, signer *signing.Signer, relayBase string, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		showID, ok := int64Param(w, r, "show_id")
		if !ok {
			return
		}
		episodeID, ok := int64Param(w, r, "episode_id")
		if !ok {
			return
		}

		detail, err := cs.GetShowDetail(r.Context(), showID)
		if err != nil {
			writeWatchError(w, err)
			return
		}
		videoURL := episodeURL(detail, episodeID)
		if videoURL == "" {
			api.NotFound(w, "NO_SOURCES", "no playback source for this episode", "")
			return
		}

		resp, err := signPlayback(signer, relayBase, videoURL, uid)
		if err != nil {
			api.Internal(w, "")
			return
		}
		events.Publish(analytics.SubjectPlaybackStarted, "playback_started", uid, map[string]any{
			"show_id":    showID,
			"episode_id": episodeID,
		})
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// WatchMovie handles GET /api/anime/{show_id}/watch for movie-type shows.
func WatchMovie(cs store.CatalogStore, signer *signing.Signer, relayBase string, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		showID, ok := int64Param(w, r, "show_id")
		if !ok {
			return
		}

		detail, err := cs.GetShowDetail(r.Context(), showID)
		if err != nil {
			writeWatchError(w, err)
			return
		}
		if detail.MovieURL == "" {
			api.NotFound(w, "NO_SOURCES", "no playback source for this show", "")
			return
		}

		resp, err := signPlayback(signer, relayBase, detail.MovieURL, uid)
		if err != nil {
			api.Internal(w, "")
			return
		}
		events.Publish(analytics.SubjectPlaybackStarted, "playback_started", uid, map[string]any{
			"show_id": showID,
		})
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

func signPlayback(signer *signing.Signer, relayBase, videoURL, uid string) (watchResponse, error) {
	exp := time.Now().Add(playbackTTL)
	signed := signer.Sign(videoURL, uid, exp)
	url, err := signing.BuildSignedURL(relayBase, signed)
	if err != nil {
		return watchResponse{}, err
	}
	return watchResponse{SignedPlaybackURL: url, ExpiresAt: exp.UTC()}, nil
}

func episodeURL(detail store.ShowDetail, episodeID int64) string {
	for _, season := range detail.Seasons {
		for _, ep := range season.Episodes {
			if ep.ID == episodeID {
				return ep.VideoURL
			}
		}
	}
	return ""
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, name)), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "INVALID_ID", name+" must be a positive integer", "", nil)
		return 0, false
	}
	return id, true
}

func writeWatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		api.NotFound(w, "NOT_FOUND", "show not found", "")
		return
	}
	api.Internal(w, "")
}
