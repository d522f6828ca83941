package avatars

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
	ErrNotFound   = errors.New("avatar not found")
	ErrValidation = errors.New("invalid avatar input")
)

// Avatar is one entry of the selectable profile picture gallery.
type Avatar struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	IsPremium bool   `json:"is_premium"`
	Cost      int    `json:"cost"`
}

type Input struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	IsPremium bool   `json:"is_premium"`
	Cost      int    `json:"cost"`
}

type Store interface {
	List(ctx context.Context) ([]Avatar, error)
	Create(ctx context.Context, in Input) (Avatar, error)
	Update(ctx context.Context, id int64, in Input) (Avatar, error)
	Delete(ctx context.Context, id int64) error
}

func validateInput(in Input) (Input, error) {
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return in, fmt.Errorf("%w: url is required", ErrValidation)
	}
	if in.Cost < 0 {
		return in, fmt.Errorf("%w: cost must not be negative", ErrValidation)
	}
	in.Name = strings.TrimSpace(in.Name)
	return in, nil
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context) ([]Avatar, error) {
	rows, err := s.db.Query(ctx, `SELECT id, url, name, is_premium, cost FROM avatars ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Avatar
	for rows.Next() {
		var a Avatar
		if err := rows.Scan(&a.ID, &a.URL, &a.Name, &a.IsPremium, &a.Cost); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, in Input) (Avatar, error) {
	in, err := validateInput(in)
	if err != nil {
		return Avatar{}, err
	}
	a := Avatar{URL: in.URL, Name: in.Name, IsPremium: in.IsPremium, Cost: in.Cost}
	err = s.db.QueryRow(ctx,
		`INSERT INTO avatars (url, name, is_premium, cost) VALUES ($1, $2, $3, $4) RETURNING id`,
		in.URL, in.Name, in.IsPremium, in.Cost).Scan(&a.ID)
	return a, err
}

func (s *PostgresStore) Update(ctx context.Context, id int64, in Input) (Avatar, error) {
	in, err := validateInput(in)
	if err != nil {
		return Avatar{}, err
	}
	a := Avatar{ID: id, URL: in.URL, Name: in.Name, IsPremium: in.IsPremium, Cost: in.Cost}
	err = s.db.QueryRow(ctx, `
UPDATE avatars SET url = $2, name = $3, is_premium = $4, cost = $5
WHERE id = $1
RETURNING id`, id, in.URL, in.Name, in.IsPremium, in.Cost).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Avatar{}, ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM avatars WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InMemoryStore backs tests and database-free development runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	avatars map[int64]Avatar
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{avatars: make(map[int64]Avatar)}
}

func (s *InMemoryStore) List(_ context.Context) ([]Avatar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Avatar, 0, len(s.avatars))
	for _, a := range s.avatars {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) Create(_ context.Context, in Input) (Avatar, error) {
	in, err := validateInput(in)
	if err != nil {
		return Avatar{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	a := Avatar{ID: s.nextID, URL: in.URL, Name: in.Name, IsPremium: in.IsPremium, Cost: in.Cost}
	s.avatars[a.ID] = a
	return a, nil
}

func (s *InMemoryStore) Update(_ context.Context, id int64, in Input) (Avatar, error) {
	in, err := validateInput(in)
	if err != nil {
		return Avatar{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.avatars[id]; !ok {
		return Avatar{}, ErrNotFound
	}
	a := Avatar{ID: id, URL: in.URL, Name: in.Name, IsPremium: in.IsPremium, Cost: in.Cost}
	s.avatars[id] = a
	return a, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.avatars[id]; !ok {
		return ErrNotFound
	}
	delete(s.avatars, id)
	return nil
}
