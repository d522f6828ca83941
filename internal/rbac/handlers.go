package rbac

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/animewatch/internal/platform/api"
)

type roleRequest struct {
	Title         string  `json:"title"`
	PermissionIDs []int64 `json:"permission_ids"`
}

type userRolesRequest struct {
	RoleIDs []int64 `json:"role_ids"`
}

// ListPermissions handles GET /api/admin/permissions.
func ListPermissions(rs Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		perms, err := rs.ListPermissions(r.Context())
		if err != nil {
			api.Internal(w, "")
			return
		}
		if perms == nil {
			perms = []Permission{}
		}
		api.WriteJSON(w, http.StatusOK, perms)
	}
}

// ListRoles handles GET /api/admin/roles.
func ListRoles(rs Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roles, err := rs.ListRoles(r.Context())
		if err != nil {
			api.Internal(w, "")
			return
		}
		if roles == nil {
			roles = []Role{}
		}
		api.WriteJSON(w, http.StatusOK, roles)
	}
}

// CreateRole handles POST /api/admin/roles.
func CreateRole(rs Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roleRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		role, err := rs.CreateRole(r.Context(), req.Title, req.PermissionIDs)
		if err != nil {
			writeRBACError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, role)
	}
}

// UpdateRole handles PUT /api/admin/roles/{role_id}.
func UpdateRole(rs Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roleID, ok := roleIDParam(w, r)
		if !ok {
			return
		}
		var req roleRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		role, err := rs.UpdateRole(r.Context(), roleID, req.Title, req.PermissionIDs)
		if err != nil {
			writeRBACError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, role)
	}
}

// DeleteRole handles DELETE /api/admin/roles/{role_id}.
func DeleteRole(rs Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roleID, ok := roleIDParam(w, r)
		if !ok {
			return
		}
		if err := rs.DeleteRole(r.Context(), roleID); err != nil {
			writeRBACError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListUserRoles handles GET /api/admin/users/roles.
func ListUserRoles(rs Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := rs.ListUserRoles(r.Context())
		if err != nil {
			api.Internal(w, "")
			return
		}
		if users == nil {
			users = []UserRoles{}
		}
		api.WriteJSON(w, http.StatusOK, users)
	}
}

// SetUserRoles handles PUT /api/admin/users/{user_id}/roles.
func SetUserRoles(rs Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
		if userID == "" {
			api.BadRequest(w, "INVALID_ID", "user_id is required", "", nil)
			return
		}
		var req userRolesRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if err := rs.SetUserRoles(r.Context(), userID, req.RoleIDs); err != nil {
			writeRBACError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func roleIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "role_id")), 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "INVALID_ID", "role_id must be a positive integer", "", nil)
		return 0, false
	}
	return id, true
}

func writeRBACError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "not found", "")
	case errors.Is(err, ErrValidation):
		api.BadRequest(w, "INVALID_INPUT", err.Error(), "", nil)
	default:
		api.Internal(w, "")
	}
}
