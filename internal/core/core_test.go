// AngelaMos | 2026
// core_test.go

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeydae/giftcards/internal/config"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("cliente123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyPassword("cliente123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("cliente124", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("x", "not-a-hash")
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestRandomString(t *testing.T) {
	const alphabet = "ABC123"

	s, err := RandomString(alphabet, 32)
	require.NoError(t, err)
	assert.Len(t, s, 32)
	for _, r := range s {
		assert.Contains(t, alphabet, string(r))
	}

	_, err = RandomString("", 4)
	assert.Error(t, err)
	_, err = RandomString(alphabet, 0)
	assert.Error(t, err)
}

func TestCheckLogin(t *testing.T) {
	hash, err := HashPassword("cliente123")
	require.NoError(t, err)

	ok, rehash, err := CheckLogin("cliente123", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, rehash)

	ok, _, err = CheckLogin("cliente124", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = CheckLogin("cliente123", "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = CheckLogin("cliente123", "$bcrypt$nope")
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestCheckLoginUpgradesOldCost(t *testing.T) {
	salt := []byte("0123456789abcdef")
	weak := argonParams{memory: 8 * 1024, time: 1, threads: 1, keyLen: 32}
	old := passwordHash{params: weak, salt: salt, key: weak.derive("cliente123", salt)}.String()

	ok, rehash, err := CheckLogin("cliente123", old)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, rehash)

	upgraded, err := parsePasswordHash(rehash)
	require.NoError(t, err)
	assert.Equal(t, passwordParams, upgraded.params)

	ok, err = VerifyPassword("cliente123", rehash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRefreshToken(t *testing.T) {
	token, hash, err := NewRefreshToken()
	require.NoError(t, err)

	assert.Len(t, token, 43)
	assert.NotContains(t, token, "=")
	assert.Len(t, hash, 64)
	assert.Equal(t, HashToken(token), hash)

	other, _, err := NewRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, EscapeLike(`50%_off\`))
}

func TestJSONErrorRendersAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, fmt.Errorf("wrapped: %w", NotFoundError("card")))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "card not found", resp.Error.Message)
}

func TestJSONErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestPaginated(t *testing.T) {
	rec := httptest.NewRecorder()
	Paginated(rec, []string{"a"}, 2, 10, 21)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestFormatValidationError(t *testing.T) {
	type req struct {
		OwnerEmail string `validate:"required,email"`
		Role       string `validate:"oneof=client admin"`
	}

	err := validator.New().Struct(req{OwnerEmail: "nope", Role: "boss"})
	msg := FormatValidationError(err)

	assert.Contains(t, msg, "owner_email must be a valid email")
	assert.Contains(t, msg, "role must be one of: client admin")
	assert.Equal(t, "invalid request", FormatValidationError(errors.New("x")))
}

func TestRedisKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{prefix: "honeydae", parts: []string{"revoked", "jti-1"}, want: "honeydae:revoked:jti-1"},
		{prefix: "honeydae:", parts: []string{"ratelimit:ip:10.0.0.1"}, want: "honeydae:ratelimit:ip:10.0.0.1"},
		{prefix: "", parts: []string{"revoked", "jti-1"}, want: "revoked:jti-1"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, NewRedisFromClient(nil, tt.prefix).Key(tt.parts...))
		})
	}
}

func TestNewRedis(t *testing.T) {
	ctx := context.Background()

	rdb, err := NewRedis(ctx, config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.NoError(t, rdb.Close())

	_, err = NewRedis(ctx, config.RedisConfig{URL: "http://localhost:6379"})
	assert.ErrorContains(t, err, "parse redis url")
}
