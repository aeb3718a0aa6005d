// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeydae/giftcards/internal/core"
)

var userRowColumns = []string{
	"id", "email", "password_hash", "name", "role", "token_version",
	"created_at", "updated_at",
}

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestPostgresListUsersFilters(t *testing.T) {
	repo, mock := newMockRepository(t)
	joined := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	where := "WHERE TRUE AND (email ILIKE $1 OR name ILIKE $1) AND role = $2"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users " + where)).
		WithArgs(`%50\%\_off%`, RoleClient).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(21)))

	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs(`%50\%\_off%`, RoleClient, 10, 10).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-1", "promo@example.com", "hash", "50%_off fan", RoleClient, int64(0), joined, joined))

	users, total, err := repo.List(context.Background(), ListUsersParams{
		Page:     2,
		PageSize: 10,
		Search:   "50%_off",
		Role:     RoleClient,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	require.Len(t, users, 1)
	assert.Equal(t, "promo@example.com", users[0].Email)
}

func TestPostgresListUsersUnfiltered(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE TRUE")).
		WithArgs().
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE TRUE ORDER BY created_at DESC LIMIT $1 OFFSET $2")).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	users, total, err := repo.List(context.Background(), ListUsersParams{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestPostgresCreateUserDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (id, email, password_hash, name, role)")).
		WithArgs("u-1", "maria@example.com", "hash", "Maria", RoleClient).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &User{
		ID:           "u-1",
		Email:        "maria@example.com",
		PasswordHash: "hash",
		Name:         "Maria",
		Role:         RoleClient,
	})
	require.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestPostgresUpdatesMissingUser(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("SET password_hash = $2, updated_at = NOW() WHERE id = $1")).
		WithArgs("ghost", "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.UpdatePassword(ctx, "ghost", "new-hash"), core.ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("SET token_version = token_version + 1")).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.IncrementTokenVersion(ctx, "u-1"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns))
	_, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, core.ErrNotFound)
}
