// AngelaMos | 2026
// repository_memory.go

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/honeydae/giftcards/internal/core"
)

type memoryRepository struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
	byHash map[string]string
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		tokens: make(map[string]*RefreshToken),
		byHash: make(map[string]string),
	}
}

func (r *memoryRepository) Issue(_ context.Context, token *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.insert(token); err != nil {
		return fmt.Errorf("issue refresh token: %w", err)
	}
	return nil
}

func (r *memoryRepository) Rotate(
	_ context.Context,
	usedID string,
	next *RefreshToken,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	used, ok := r.tokens[usedID]
	if !ok || used.IsUsed || used.IsRevoked() {
		return fmt.Errorf("rotate refresh token: %w", ErrTokenReuse)
	}
	if err := r.insert(next); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	used.MarkAsUsed(next.ID)
	return nil
}

func (r *memoryRepository) FindByHash(
	_ context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}

	found := *r.tokens[id]
	return &found, nil
}

func (r *memoryRepository) Revoke(_ context.Context, scope Scope) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var revoked int64
	for _, token := range r.tokens {
		if scope.matches(token) && !token.IsRevoked() {
			token.Revoke()
			revoked++
		}
	}

	return revoked, nil
}

func (r *memoryRepository) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, token := range r.tokens {
		if token.ExpiresAt.Before(cutoff) {
			delete(r.byHash, token.TokenHash)
			delete(r.tokens, id)
			deleted++
		}
	}

	return deleted, nil
}

func (r *memoryRepository) insert(token *RefreshToken) error {
	if _, ok := r.byHash[token.TokenHash]; ok {
		return core.ErrDuplicateKey
	}

	token.CreatedAt = time.Now()
	stored := *token
	r.tokens[token.ID] = &stored
	r.byHash[token.TokenHash] = token.ID

	return nil
}
