package ticker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("ticker item not found")
	ErrValidation = errors.New("invalid ticker input")
)

// Item is one announcement shown in the site-wide ticker bar.
type Item struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	// List returns all announcements, newest first.
	List(ctx context.Context) ([]Item, error)
	Create(ctx context.Context, message, link string) (Item, error)
	Update(ctx context.Context, id int64, message, link string) (Item, error)
	Delete(ctx context.Context, id int64) error
}

func validateMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message is required", ErrValidation)
	}
	return message, nil
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, message, COALESCE(link, ''), created_at FROM ticker ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Message, &it.Link, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, message, link string) (Item, error) {
	message, err := validateMessage(message)
	if err != nil {
		return Item{}, err
	}
	it := Item{Message: message, Link: strings.TrimSpace(link)}
	err = s.db.QueryRow(ctx,
		`INSERT INTO ticker (message, link) VALUES ($1, NULLIF($2, '')) RETURNING id, created_at`,
		it.Message, it.Link).Scan(&it.ID, &it.CreatedAt)
	return it, err
}

func (s *PostgresStore) Update(ctx context.Context, id int64, message, link string) (Item, error) {
	message, err := validateMessage(message)
	if err != nil {
		return Item{}, err
	}
	var it Item
	err = s.db.QueryRow(ctx, `
UPDATE ticker SET message = $2, link = NULLIF($3, '')
WHERE id = $1
RETURNING id, message, COALESCE(link, ''), created_at`,
		id, message, strings.TrimSpace(link)).Scan(&it.ID, &it.Message, &it.Link, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM ticker WHERE id = $1`, id)
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
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Item
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[int64]Item)}
}

func (s *InMemoryStore) List(_ context.Context) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) Create(_ context.Context, message, link string) (Item, error) {
	message, err := validateMessage(message)
	if err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	it := Item{ID: s.nextID, Message: message, Link: strings.TrimSpace(link), CreatedAt: time.Now().UTC()}
	s.items[it.ID] = it
	return it, nil
}

func (s *InMemoryStore) Update(_ context.Context, id int64, message, link string) (Item, error) {
	message, err := validateMessage(message)
	if err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	it.Message = message
	it.Link = strings.TrimSpace(link)
	s.items[id] = it
	return it, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
