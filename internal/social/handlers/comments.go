package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/example/animewatch/internal/platform/analytics"
	"github.com/example/animewatch/internal/platform/api"
	"github.com/example/animewatch/internal/platform/auth"
	"github.com/example/animewatch/internal/social/store"
)

// Comment text is stripped of all HTML before it ever reaches the store.
var textPolicy = bluemonday.StrictPolicy()

type createCommentRequest struct {
	Text     string `json:"comment_text"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type updateCommentRequest struct {
	Text string `json:"comment_text"`
}

type commentPageResponse struct {
	Comments []*store.Node `json:"comments"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ListComments handles GET /api/comments/{show_id}. Works for anonymous
// viewers; a logged-in viewer additionally gets their own reaction flags.
func ListComments(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showID, ok := showIDParam(w, r)
		if !ok {
			return
		}

		sort := store.ParseSort(r.URL.Query().Get("sort"))

		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
				page = parsed
			}
		}
		pageSize := 10
		if ps := r.URL.Query().Get("page_size"); ps != "" {
			if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= 100 {
				pageSize = parsed
			}
		}

		var viewerID *string
		if userID, ok := auth.UserIDFromContext(r.Context()); ok && userID != "" {
			viewerID = &userID
		}

		comments, err := cs.ListPage(r.Context(), showID, sort, page, pageSize, viewerID)
		if err != nil {
			api.Internal(w, "")
			return
		}

		api.WriteJSON(w, http.StatusOK, commentPageResponse{
			Comments: store.BuildForest(comments),
			Page:     page,
			PageSize: pageSize,
		})
	}
}

// CreateComment handles POST /api/comments/{show_id}.
func CreateComment(cs store.CommentStore, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		showID, ok := showIDParam(w, r)
		if !ok {
			return
		}

		var req createCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}

		created, err := cs.Create(r.Context(), showID, userID, textPolicy.Sanitize(req.Text), req.ParentID)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		events.Publish(analytics.SubjectCommentPosted, "comment_posted", userID, map[string]any{
			"show_id":    showID,
			"comment_id": created.ID,
			"is_reply":   created.ParentID != nil,
		})
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// UpdateComment handles PUT /api/comments/{comment_id}.
func UpdateComment(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		commentID, ok := commentIDParam(w, r)
		if !ok {
			return
		}

		var req updateCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}

		updated, err := cs.Edit(r.Context(), commentID, userID, textPolicy.Sanitize(req.Text))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, updated)
	}
}

// DeleteComment handles DELETE /api/comments/{comment_id}. Removes the
// whole reply subtree.
func DeleteComment(cs store.CommentStore, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		commentID, ok := commentIDParam(w, r)
		if !ok {
			return
		}

		if err := cs.Delete(r.Context(), commentID, userID); err != nil {
			writeStoreError(w, err)
			return
		}

		events.Publish(analytics.SubjectCommentDeleted, "comment_deleted", userID, map[string]any{
			"comment_id": commentID,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// ToggleLike handles POST /api/comments/{comment_id}/like.
func ToggleLike(cs store.CommentStore, events *analytics.Publisher) http.HandlerFunc {
	return toggleReaction(cs, events, store.ReactionLike)
}

// ToggleDislike handles POST /api/comments/{comment_id}/dislike.
func ToggleDislike(cs store.CommentStore, events *analytics.Publisher) http.HandlerFunc {
	return toggleReaction(cs, events, store.ReactionDislike)
}

func toggleReaction(cs store.CommentStore, events *analytics.Publisher, t store.ReactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		commentID, ok := commentIDParam(w, r)
		if !ok {
			return
		}

		sum, err := cs.Toggle(r.Context(), commentID, userID, t)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		events.Publish(analytics.SubjectReactionToggled, "reaction_toggled", userID, map[string]any{
			"comment_id": commentID,
			"type":       int(t),
		})
		api.WriteJSON(w, http.StatusOK, sum)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
		return "", false
	}
	return userID, true
}

func showIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "show_id")), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "INVALID_ID", "show_id must be a positive integer", "", nil)
		return 0, false
	}
	return id, true
}

func commentIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "comment_id")), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "INVALID_ID", "comment_id must be a positive integer", "", nil)
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "comment not found", "")
	case errors.Is(err, store.ErrForbidden):
		api.Forbidden(w, "FORBIDDEN", "not the comment author", "")
	case errors.Is(err, store.ErrValidation):
		api.BadRequest(w, "INVALID_INPUT", err.Error(), "", nil)
	default:
		api.Internal(w, "")
	}
}
