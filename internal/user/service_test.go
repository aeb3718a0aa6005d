// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeydae/giftcards/internal/config"
	"github.com/honeydae/giftcards/internal/core"
	"github.com/honeydae/giftcards/internal/ledger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryRepository())
}

func TestCreateNormalizesAndDefaultsToClient(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	info, err := s.Create(ctx, "  Maria@Example.COM ", "hash", " Maria ")
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", info.Email)
	assert.Equal(t, "Maria", info.Name)
	assert.Equal(t, RoleClient, info.Role)
	assert.False(t, info.CreatedAt.IsZero())

	_, err = s.Create(ctx, "maria@example.com", "hash", "Again")
	require.ErrorIs(t, err, core.ErrDuplicateKey)

	found, err := s.GetByEmail(ctx, "MARIA@example.com")
	require.NoError(t, err)
	assert.Equal(t, info.ID, found.ID)
}

func TestEnsureAccount(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	admin, created, err := s.EnsureAccount(ctx,
		"admin@honeydae.com", "admin123", "Admin", RoleAdmin)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, admin.IsAdmin())

	valid, err := core.VerifyPassword("admin123", admin.PasswordHash)
	require.NoError(t, err)
	assert.True(t, valid)

	again, created, err := s.EnsureAccount(ctx,
		"ADMIN@honeydae.com", "different", "Renamed", RoleAdmin)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)
	assert.Equal(t, admin.PasswordHash, again.PasswordHash)

	_, _, err = s.EnsureAccount(ctx, "x@example.com", "pw123456", "X", "owner")
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestUpdateUserRole(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	admin, _, err := s.EnsureAccount(ctx, "admin@honeydae.com", "admin123", "Admin", RoleAdmin)
	require.NoError(t, err)
	client, err := s.Create(ctx, "maria@example.com", "hash", "Maria")
	require.NoError(t, err)

	promoted, err := s.UpdateUserRole(ctx, admin.ID, client.ID, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, promoted.Role)

	_, err = s.UpdateUserRole(ctx, admin.ID, admin.ID, RoleClient)
	require.ErrorIs(t, err, core.ErrForbidden)

	_, err = s.UpdateUserRole(ctx, admin.ID, client.ID, "superuser")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = s.UpdateUserRole(ctx, admin.ID, "missing", RoleClient)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateMe(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	client, err := s.Create(ctx, "maria@example.com", "hash", "Maria")
	require.NoError(t, err)

	name := "  Maria Garcia "
	updated, err := s.UpdateMe(ctx, client.ID, UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Maria Garcia", updated.Name)

	unchanged, err := s.UpdateMe(ctx, client.ID, UpdateUserRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Maria Garcia", unchanged.Name)

	_, err = s.UpdateMe(ctx, "", UpdateUserRequest{Name: &name})
	require.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestTokenVersionAndPassword(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	client, err := s.Create(ctx, "maria@example.com", "old", "Maria")
	require.NoError(t, err)

	require.NoError(t, s.IncrementTokenVersion(ctx, client.ID))
	require.NoError(t, s.IncrementTokenVersion(ctx, client.ID))
	require.NoError(t, s.UpdatePassword(ctx, client.ID, "new"))

	info, err := s.GetByID(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, info.TokenVersion)
	assert.Equal(t, "new", info.PasswordHash)

	require.ErrorIs(t, s.IncrementTokenVersion(ctx, "missing"), core.ErrNotFound)
}

func TestListUsers(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, _, err := s.EnsureAccount(ctx, "admin@honeydae.com", "admin123", "Admin", RoleAdmin)
	require.NoError(t, err)
	for i := range 5 {
		_, err := s.Create(ctx, fmt.Sprintf("client%d@example.com", i), "hash", fmt.Sprintf("Client %d", i))
		require.NoError(t, err)
	}

	users, total, err := s.ListUsers(ctx, ListUsersParams{Role: RoleClient, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, users, 2)

	users, total, err = s.ListUsers(ctx, ListUsersParams{Role: RoleClient, Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, users, 1)

	users, total, err = s.ListUsers(ctx, ListUsersParams{Search: "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "admin@honeydae.com", users[0].Email)

	count, err := s.CountByRole(ctx, RoleClient)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestServiceAsCardOwnerProvider(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	client, err := s.Create(ctx, "maria@example.com", "hash", "Maria Garcia")
	require.NoError(t, err)

	cards := ledger.NewService(ledger.NewMemoryRepository(), s, config.LedgerConfig{
		CodePrefix:       "HONEY-",
		CodeAttempts:     3,
		IssueDescription: "Card issued",
	})

	card, err := cards.IssueCard(ctx, ledger.IssueParams{
		OwnerEmail: "Maria@Example.com",
		Amount:     decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Equal(t, client.ID, card.OwnerID)
	assert.Equal(t, "Maria Garcia", card.OwnerName)

	_, err = cards.IssueCard(ctx, ledger.IssueParams{
		OwnerEmail: "nobody@example.com",
		Amount:     decimal.NewFromInt(100),
	})
	require.ErrorIs(t, err, ledger.ErrUserNotFound)

	stats, err := cards.ComputeStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalClientUsers)
}
