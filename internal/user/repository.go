package user

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Repository is the record store. Implementations assign ID and timestamps
// on Create, refresh UpdatedAt on Update, and return ErrNotFound or
// ErrEmailExists where applicable.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	Find(ctx context.Context, q Query) ([]User, error)
	Count(ctx context.Context, filter Cond) (int64, error)
	Update(ctx context.Context, id string, p Patch) (User, error)
	Delete(ctx context.Context, id string) (User, error)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a ULID; IDs minted in the same millisecond keep their
// creation order.
func newID(t time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", fmt.Errorf("generate user id: %w", err)
	}
	return id.String(), nil
}

func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// newest orders users by creation time descending, later IDs first on ties.
func newest(users []User) {
	sort.SliceStable(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})
}

type InMemoryRepository struct {
	mu    sync.RWMutex
	users []User
	now   func() time.Time
}

var _ Repository = (*InMemoryRepository)(nil)

func NewInMemoryRepository(seed []User) *InMemoryRepository {
	repo := &InMemoryRepository{
		users: make([]User, 0, len(seed)),
		now:   storeNow,
	}
	for _, u := range seed {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = repo.now()
		}
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = u.CreatedAt
		}
		if u.ID == "" {
			u.ID, _ = newID(u.CreatedAt)
		}
		if u.Status == "" {
			u.Status = StatusActive
		}
		repo.users = append(repo.users, u)
	}
	return repo
}

func (r *InMemoryRepository) Create(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(u.Email, "") {
		return User{}, ErrEmailExists
	}

	now := r.now()
	id, err := newID(now)
	if err != nil {
		return User{}, err
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Status == "" {
		u.Status = StatusActive
	}

	r.users = append(r.users, u)
	return u, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.index(id); i >= 0 {
		return r.users[i], nil
	}
	return User{}, ErrNotFound
}

func (r *InMemoryRepository) Find(ctx context.Context, q Query) ([]User, error) {
	matches := r.matching(q.Filter)
	newest(matches)

	if q.Offset < 0 || q.Offset >= len(matches) {
		return []User{}, nil
	}
	matches = matches[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matches) {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func (r *InMemoryRepository) Count(ctx context.Context, filter Cond) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id string, p Patch) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return User{}, ErrNotFound
	}
	if p.Email != nil && r.emailTaken(*p.Email, id) {
		return User{}, ErrEmailExists
	}

	u := r.users[i]
	p.Apply(&u)
	u.UpdatedAt = r.now()
	r.users[i] = u
	return u, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return User{}, ErrNotFound
	}
	deleted := r.users[i]
	r.users = append(r.users[:i], r.users[i+1:]...)
	return deleted, nil
}

func (r *InMemoryRepository) matching(filter Cond) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		if Match(filter, u) {
			out = append(out, u)
		}
	}
	return out
}

// index must be called with r.mu held.
func (r *InMemoryRepository) index(id string) int {
	for i, u := range r.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// emailTaken must be called with r.mu held.
func (r *InMemoryRepository) emailTaken(email, exceptID string) bool {
	for _, u := range r.users {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}
