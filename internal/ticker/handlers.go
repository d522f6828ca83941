package ticker

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/example/animewatch/internal/platform/api"
)

var messagePolicy = bluemonday.StrictPolicy()

type itemRequest struct {
	Message string `json:"message"`
	Link    string `json:"link"`
}

// ListItems handles GET /api/ticker.
func ListItems(ts Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := ts.List(r.Context())
		if err != nil {
			api.Internal(w, "")
			return
		}
		if items == nil {
			items = []Item{}
		}
		api.WriteJSON(w, http.StatusOK, items)
	}
}

// CreateItem handles POST /api/admin/ticker.
func CreateItem(ts Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeItem(w, r)
		if !ok {
			return
		}
		it, err := ts.Create(r.Context(), messagePolicy.Sanitize(req.Message), req.Link)
		if err != nil {
			writeTickerError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, it)
	}
}

// UpdateItem handles PUT /api/admin/ticker/{item_id}.
func UpdateItem(ts Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := itemIDParam(w, r)
		if !ok {
			return
		}
		req, ok := decodeItem(w, r)
		if !ok {
			return
		}
		it, err := ts.Update(r.Context(), id, messagePolicy.Sanitize(req.Message), req.Link)
		if err != nil {
			writeTickerError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, it)
	}
}

// DeleteItem handles DELETE /api/admin/ticker/{item_id}.
func DeleteItem(ts Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := itemIDParam(w, r)
		if !ok {
			return
		}
		if err := ts.Delete(r.Context(), id); err != nil {
			writeTickerError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeItem(w http.ResponseWriter, r *http.Request) (itemRequest, bool) {
	var req itemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
		return itemRequest{}, false
	}
	return req, true
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "item_id")), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "INVALID_ID", "item_id must be a positive integer", "", nil)
		return 0, false
	}
	return id, true
}

func writeTickerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "ticker item not found", "")
	case errors.Is(err, ErrValidation):
		api.BadRequest(w, "INVALID_INPUT", err.Error(), "", nil)
	default:
		api.Internal(w, "")
	}
}
