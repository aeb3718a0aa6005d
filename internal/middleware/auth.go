// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/honeydae/giftcards/internal/core"
)

// RoleAdmin runs the salon counter: issues, recharges and debits cards.
// Every other role is a card holder.
const RoleAdmin = "admin"

type claimsKey struct{}

type TokenVerifier interface {
	VerifyAccessToken(
		ctx context.Context,
		token string,
	) (*AccessTokenClaims, error)
}

// AccessTokenClaims is the verified caller of a request.
type AccessTokenClaims struct {
	UserID       string
	Role         string
	TokenVersion int
	JTI          string
	ExpiresAt    time.Time
}

func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// CanAccessOwner reports whether the caller may read data owned by
// ownerID. Admins see every card; holders see only their own.
func (c *AccessTokenClaims) CanAccessOwner(ownerID string) bool {
	if c == nil {
		return false
	}
	return c.IsAdmin() || c.UserID == ownerID
}

// Authenticator requires a bearer access token and stores the verified
// claims on the request context.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				core.JSONError(w, core.UnauthorizedError("missing authorization token"))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				core.JSONError(w, tokenError(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin lets only the salon staff through. It must run after
// Authenticator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		switch {
		case claims == nil:
			core.JSONError(w, core.UnauthorizedError("authentication required"))
		case !claims.IsAdmin():
			core.JSONError(w, core.ForbiddenError("admin access required"))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func WithClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func GetClaims(ctx context.Context) *AccessTokenClaims {
	claims, _ := ctx.Value(claimsKey{}).(*AccessTokenClaims)
	return claims
}

// GetUserID returns the caller's id, or "" on unauthenticated requests.
func GetUserID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

// CanAccessOwner is AccessTokenClaims.CanAccessOwner for the request's
// caller.
func CanAccessOwner(ctx context.Context, ownerID string) bool {
	return GetClaims(ctx).CanAccessOwner(ownerID)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenError(err error) error {
	if core.IsAppError(err) {
		return err
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		return core.TokenExpiredError()
	case errors.Is(err, core.ErrTokenRevoked):
		return core.TokenRevokedError()
	default:
		return core.TokenInvalidError()
	}
}
