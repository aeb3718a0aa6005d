// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/honeydae/giftcards/internal/core"
)

// Scope names which refresh tokens a revocation applies to.
type Scope struct {
	Kind ScopeKind
	ID   string
}

type ScopeKind int

const (
	ScopeToken ScopeKind = iota
	ScopeFamily
	ScopeUser
)

func TokenScope(id string) Scope       { return Scope{Kind: ScopeToken, ID: id} }
func FamilyScope(familyID string) Scope { return Scope{Kind: ScopeFamily, ID: familyID} }
func UserScope(userID string) Scope     { return Scope{Kind: ScopeUser, ID: userID} }

func (s Scope) matches(t *RefreshToken) bool {
	switch s.Kind {
	case ScopeToken:
		return t.ID == s.ID
	case ScopeFamily:
		return t.FamilyID == s.ID
	case ScopeUser:
		return t.UserID == s.ID
	}
	return false
}

var scopeColumns = map[ScopeKind]string{
	ScopeToken:  "id",
	ScopeFamily: "family_id",
	ScopeUser:   "user_id",
}

// Repository stores refresh tokens by hash. Tokens are kept after use and
// revocation so that reuse of a rotated token can be detected.
type Repository interface {
	// Issue stores the first token of a new family.
	Issue(ctx context.Context, token *RefreshToken) error
	// Rotate marks usedID as used and stores next as its replacement in
	// one step. It fails with ErrTokenReuse when usedID was already
	// redeemed or revoked, so two concurrent refreshes cannot both win.
	Rotate(ctx context.Context, usedID string, next *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Revoke revokes every live token in scope and reports how many.
	Revoke(ctx context.Context, scope Scope) (int64, error)
	// Prune deletes tokens that expired before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const tokenColumns = `id, user_id, token_hash, family_id, expires_at, created_at,
		       is_used, used_at, revoked_at, replaced_by_id, user_agent, ip_address`

func (r *repository) Issue(ctx context.Context, token *RefreshToken) error {
	if err := insertToken(ctx, r.db, token); err != nil {
		return fmt.Errorf("issue refresh token: %w", err)
	}
	return nil
}

func (r *repository) Rotate(
	ctx context.Context,
	usedID string,
	next *RefreshToken,
) error {
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE refresh_tokens
			SET is_used = true, used_at = NOW(), replaced_by_id = $2
			WHERE id = $1 AND is_used = false AND revoked_at IS NULL`,
			usedID, next.ID)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrTokenReuse
		}

		return insertToken(ctx, tx, next)
	})
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindByHash(
	ctx context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

func (r *repository) Revoke(ctx context.Context, scope Scope) (int64, error) {
	column, ok := scopeColumns[scope.Kind]
	if !ok {
		return 0, fmt.Errorf("revoke refresh tokens: unknown scope %d", scope.Kind)
	}

	query := `UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE ` + column + ` = $1 AND revoked_at IS NULL`

	return r.execCount(ctx, "revoke refresh tokens", query, scope.ID)
}

func (r *repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.execCount(ctx, "prune refresh tokens",
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
}

func (r *repository) execCount(
	ctx context.Context,
	op, query string,
	args ...any,
) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return rows, nil
}

func insertToken(ctx context.Context, q sqlx.QueryerContext, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, family_id,
		                            expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := sqlx.GetContext(ctx, q, &token.CreatedAt, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.FamilyID,
		token.ExpiresAt,
		token.UserAgent,
		token.IPAddress,
	)
	if core.IsDuplicateKeyError(err) {
		return core.ErrDuplicateKey
	}
	return err
}
