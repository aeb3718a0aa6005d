// AngelaMos | 2026
// entity.go

package user

import (
	"fmt"
	"time"

	"github.com/honeydae/giftcards/internal/core"
)

var ErrInvalidRole = fmt.Errorf("role must be one of: client, admin: %w", core.ErrInvalidInput)

type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Name         string    `db:"name"`
	Role         string    `db:"role"`
	TokenVersion int       `db:"token_version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Clients hold cards; admins run the counter.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

func validRole(role string) bool {
	return role == RoleClient || role == RoleAdmin
}
