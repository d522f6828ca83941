package avatars

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/animewatch/internal/platform/api"
)

// ListAvatars handles GET /api/avatars.
func ListAvatars(as Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		avatars, err := as.List(r.Context())
		if err != nil {
			api.Internal(w, "")
			return
		}
		if avatars == nil {
			avatars = []Avatar{}
		}
		api.WriteJSON(w, http.StatusOK, avatars)
	}
}

// CreateAvatar handles POST /api/admin/avatars.
func CreateAvatar(as Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeInput(w, r)
		if !ok {
			return
		}
		a, err := as.Create(r.Context(), in)
		if err != nil {
			writeAvatarError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, a)
	}
}

// UpdateAvatar handles PUT /api/admin/avatars/{avatar_id}.
func UpdateAvatar(as Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := avatarIDParam(w, r)
		if !ok {
			return
		}
		in, ok := decodeInput(w, r)
		if !ok {
			return
		}
		a, err := as.Update(r.Context(), id, in)
		if err != nil {
			writeAvatarError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, a)
	}
}

// DeleteAvatar handles DELETE /api/admin/avatars/{avatar_id}.
func DeleteAvatar(as Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := avatarIDParam(w, r)
		if !ok {
			return
		}
		if err := as.Delete(r.Context(), id); err != nil {
			writeAvatarError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var in Input
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
		return Input{}, false
	}
	return in, true
}

func avatarIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "avatar_id")), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "INVALID_ID", "avatar_id must be a positive integer", "", nil)
		return 0, false
	}
	return id, true
}

func writeAvatarError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "avatar not found", "")
	case errors.Is(err, ErrValidation):
		api.BadRequest(w, "INVALID_INPUT", err.Error(), "", nil)
	default:
		api.Internal(w, "")
	}
}
