package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("role not found")
	ErrValidation = errors.New("invalid rbac input")
)

type Permission struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Role carries its permission ids so the admin UI never needs a
// per-role lookup.
type Role struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	PermissionIDs []int64 `json:"permission_ids"`
}

// UserRoles is one row of the user/role assignment listing.
type UserRoles struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	RoleIDs  []int64 `json:"role_ids"`
}

type Store interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, title string, permissionIDs []int64) (Role, error)
	// UpdateRole renames the role and replaces its permission set
	// wholesale in one transaction.
	UpdateRole(ctx context.Context, roleID int64, title string, permissionIDs []int64) (Role, error)
	DeleteRole(ctx context.Context, roleID int64) error
	ListUserRoles(ctx context.Context) ([]UserRoles, error)
	// SetUserRoles replaces the user's role set wholesale.
	SetUserRoles(ctx context.Context, userID string, roleIDs []int64) error
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: role title is required", ErrValidation)
	}
	return title, nil
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM permissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRoles assembles roles and their permission ids in two queries
// total, regardless of how many roles exist.
func (s *PostgresStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.Query(ctx, `SELECT id, title FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var out []Role
	index := map[int64]int{}
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Title); err != nil {
			rows.Close()
			return nil, err
		}
		r.PermissionIDs = []int64{}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `SELECT role_id, permission_id FROM role_permissions ORDER BY role_id, permission_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleID, permID int64
		if err := rows.Scan(&roleID, &permID); err != nil {
			return nil, err
		}
		if i, ok := index[roleID]; ok {
			out[i].PermissionIDs = append(out[i].PermissionIDs, permID)
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateRole(ctx context.Context, title string, permissionIDs []int64) (Role, error) {
	title, err := validateTitle(title)
	if err != nil {
		return Role{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Role{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r := Role{Title: title, PermissionIDs: []int64{}}
	if err := tx.QueryRow(ctx, `INSERT INTO roles (title) VALUES ($1) RETURNING id`, title).Scan(&r.ID); err != nil {
		return Role{}, err
	}
	if err := replaceRolePermissions(ctx, tx, r.ID, permissionIDs); err != nil {
		return Role{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Role{}, err
	}
	r.PermissionIDs = append(r.PermissionIDs, dedupe(permissionIDs)...)
	return r, nil
}

func (s *PostgresStore) UpdateRole(ctx context.Context, roleID int64, title string, permissionIDs []int64) (Role, error) {
	title, err := validateTitle(title)
	if err != nil {
		return Role{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Role{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE roles SET title = $2 WHERE id = $1`, roleID, title)
	if err != nil {
		return Role{}, err
	}
	if tag.RowsAffected() == 0 {
		return Role{}, ErrNotFound
	}
	if err := replaceRolePermissions(ctx, tx, roleID, permissionIDs); err != nil {
		return Role{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Role{}, err
	}
	return Role{ID: roleID, Title: title, PermissionIDs: dedupe(permissionIDs)}, nil
}

func (s *PostgresStore) DeleteRole(ctx context.Context, roleID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUserRoles(ctx context.Context) ([]UserRoles, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, username FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	var out []UserRoles
	index := map[string]int{}
	for rows.Next() {
		var u UserRoles
		if err := rows.Scan(&u.UserID, &u.Username); err != nil {
			rows.Close()
			return nil, err
		}
		u.RoleIDs = []int64{}
		index[u.UserID] = len(out)
		out = append(out, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `SELECT user_id::text, role_id FROM user_roles ORDER BY role_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		var roleID int64
		if err := rows.Scan(&userID, &roleID); err != nil {
			return nil, err
		}
		if i, ok := index[userID]; ok {
			out[i].RoleIDs = append(out[i].RoleIDs, roleID)
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetUserRoles(ctx context.Context, userID string, roleIDs []int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1::uuid)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1::uuid`, userID); err != nil {
		return err
	}
	for _, roleID := range dedupe(roleIDs) {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1::uuid, $2)`, userID, roleID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func replaceRolePermissions(ctx context.Context, tx pgx.Tx, roleID int64, permissionIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, pid := range dedupe(permissionIDs) {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, pid); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InMemoryStore backs tests and database-free development runs.
type InMemoryStore struct {
	mu          sync.RWMutex
	nextID      int64
	permissions map[int64]Permission
	roles       map[int64]Role
	users       map[string]string  // user id -> username
	userRoles   map[string][]int64 // user id -> role ids
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		permissions: make(map[int64]Permission),
		roles:       make(map[int64]Role),
		users:       make(map[string]string),
		userRoles:   make(map[string][]int64),
	}
}

// AddPermission seeds the fixed permission catalog.
func (s *InMemoryStore) AddPermission(name string) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := Permission{ID: s.nextID, Name: name}
	s.permissions[p.ID] = p
	return p
}

// AddUser seeds a user for assignment listings.
func (s *InMemoryStore) AddUser(userID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = username
}

func (s *InMemoryStore) ListPermissions(_ context.Context) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) ListRoles(_ context.Context) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, Role{ID: r.ID, Title: r.Title, PermissionIDs: append([]int64{}, r.PermissionIDs...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) CreateRole(_ context.Context, title string, permissionIDs []int64) (Role, error) {
	title, err := validateTitle(title)
	if err != nil {
		return Role{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	r := Role{ID: s.nextID, Title: title, PermissionIDs: dedupe(permissionIDs)}
	s.roles[r.ID] = r
	return r, nil
}

func (s *InMemoryStore) UpdateRole(_ context.Context, roleID int64, title string, permissionIDs []int64) (Role, error) {
	title, err := validateTitle(title)
	if err != nil {
		return Role{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return Role{}, ErrNotFound
	}
	r := Role{ID: roleID, Title: title, PermissionIDs: dedupe(permissionIDs)}
	s.roles[roleID] = r
	return r, nil
}

func (s *InMemoryStore) DeleteRole(_ context.Context, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return ErrNotFound
	}
	delete(s.roles, roleID)
	for userID, ids := range s.userRoles {
		kept := ids[:0]
		for _, id := range ids {
			if id != roleID {
				kept = append(kept, id)
			}
		}
		s.userRoles[userID] = kept
	}
	return nil
}

func (s *InMemoryStore) ListUserRoles(_ context.Context) ([]UserRoles, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]UserRoles, 0, len(s.users))
	for id, name := range s.users {
		roleIDs := s.userRoles[id]
		if roleIDs == nil {
			roleIDs = []int64{}
		}
		out = append(out, UserRoles{UserID: id, Username: name, RoleIDs: append([]int64{}, roleIDs...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *InMemoryStore) SetUserRoles(_ context.Context, userID string, roleIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	s.userRoles[userID] = dedupe(roleIDs)
	return nil
}
