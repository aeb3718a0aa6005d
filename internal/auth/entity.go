// AngelaMos | 2026
// entity.go

package auth

import (
	"time"

	"github.com/honeydae/giftcards/internal/core"
)

// RefreshToken is one link in a rotation family. Rotating marks the old
// link used and points it at its replacement.
type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

// Check reports why the token cannot be redeemed at now, or nil. A used
// token reports ErrTokenReuse so the caller can revoke its family.
func (t *RefreshToken) Check(now time.Time) error {
	switch {
	case t.IsUsed:
		return ErrTokenReuse
	case t.RevokedAt != nil:
		return core.ErrTokenRevoked
	case !now.Before(t.ExpiresAt):
		return core.ErrTokenExpired
	}
	return nil
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) MarkAsUsed(replacedByID string) {
	now := time.Now()
	t.IsUsed = true
	t.UsedAt = &now
	t.ReplacedByID = &replacedByID
}

func (t *RefreshToken) Revoke() {
	now := time.Now()
	t.RevokedAt = &now
}
