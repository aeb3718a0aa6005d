// AngelaMos | 2026
// repository_memory.go

package user

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/honeydae/giftcards/internal/core"
)

type memoryRepository struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	}

	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.TokenVersion = 0

	stored := *user
	r.users[user.ID] = &stored
	r.byEmail[user.Email] = user.ID

	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}

	found := *u
	return &found, nil
}

func (r *memoryRepository) GetByEmail(
	_ context.Context,
	email string,
) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}

	found := *r.users[id]
	return &found, nil
}

func (r *memoryRepository) Update(_ context.Context, user *User) error {
	return r.mutate(user.ID, "update user", func(u *User) {
		u.Name = user.Name
		u.Role = user.Role
		user.UpdatedAt = u.UpdatedAt
	})
}

func (r *memoryRepository) UpdatePassword(
	_ context.Context,
	id, passwordHash string,
) error {
	return r.mutate(id, "update password", func(u *User) {
		u.PasswordHash = passwordHash
	})
}

func (r *memoryRepository) IncrementTokenVersion(
	_ context.Context,
	id string,
) error {
	return r.mutate(id, "increment token version", func(u *User) {
		u.TokenVersion++
	})
}

func (r *memoryRepository) mutate(id, op string, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	u.UpdatedAt = r.now()
	fn(u)
	return nil
}

func (r *memoryRepository) List(
	_ context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()
	search := strings.ToLower(params.Search)

	r.mu.RLock()
	matched := make([]User, 0, len(r.users))
	for _, u := range r.users {
		if params.Role != "" && u.Role != params.Role {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Name), search) {
			continue
		}
		matched = append(matched, *u)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(params.Offset(), total)
	end := min(start+params.PageSize, total)

	return matched[start:end], total, nil
}

func (r *memoryRepository) CountByRole(_ context.Context, role string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, u := range r.users {
		if u.Role == role {
			count++
		}
	}

	return count, nil
}
