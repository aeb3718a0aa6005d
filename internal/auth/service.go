// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/honeydae/giftcards/internal/core"
	"github.com/honeydae/giftcards/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
)

type UserInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	TokenVersion int
	CreatedAt    time.Time
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, name string,
	) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type Service struct {
	repo         Repository
	jwt          *JWTManager
	userProvider UserProvider
	blacklist    Blacklist
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	userProvider UserProvider,
	blacklist Blacklist,
) *Service {
	return &Service{
		repo:         repo,
		jwt:          jwt,
		userProvider: userProvider,
		blacklist:    blacklist,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			_, _, _ = core.CheckLogin(req.Password, "") //nolint:errcheck // equalizes timing
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.CheckLogin(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.userProvider.UpdatePassword(ctx, user.ID, newHash)
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
}

// Register creates a client account. Administrators are never created here.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, req.Email, passwordHash, req.Name)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "client registered", "user_id", user.ID)

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	switch checkErr := storedToken.Check(time.Now()); {
	case errors.Is(checkErr, ErrTokenReuse):
		slog.WarnContext(ctx, "refresh token reuse, revoking family",
			"user_id", storedToken.UserID,
			"family_id", storedToken.FamilyID,
		)
		s.revokeFamily(ctx, storedToken.FamilyID)
		return nil, ErrTokenReuse
	case checkErr != nil:
		return nil, fmt.Errorf("refresh: %w", checkErr)
	}

	user, err := s.userProvider.GetByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return s.createAuthResponse(
		ctx,
		user,
		userAgent,
		ipAddress,
		storedToken.FamilyID,
		&storedToken.ID,
	)
}

// Logout ends the caller's session: the refresh token, when given, is
// revoked and the access token in claims is blacklisted until it expires.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	claims *middleware.AccessTokenClaims,
) error {
	if refreshToken != "" {
		storedToken, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
		switch {
		case errors.Is(err, core.ErrNotFound):
		case err != nil:
			return fmt.Errorf("find token: %w", err)
		case storedToken.UserID != claims.UserID:
			return fmt.Errorf("logout: %w", core.ErrForbidden)
		default:
			if _, err := s.repo.Revoke(ctx, TokenScope(storedToken.ID)); err != nil {
				return fmt.Errorf("revoke token: %w", err)
			}
		}
	}

	return s.RevokeAccessToken(ctx, claims.JTI, claims.ExpiresAt)
}

// LogoutAll revokes every refresh token of the user and bumps the token
// version, which invalidates all outstanding access tokens.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if _, err := s.repo.Revoke(ctx, UserScope(userID)); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.userProvider.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	if jti == "" {
		return nil
	}

	if err := s.blacklist.Revoke(ctx, jti, expiresAt); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	return nil
}

// VerifyAccessToken is the middleware.TokenVerifier used by the API. Beyond
// the signature checks it rejects blacklisted tokens and tokens minted
// before the user's last LogoutAll, and it refreshes the role from the
// user record so demotions apply immediately.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	user, err := s.userProvider.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("verify token: %w", err)
	}

	if claims.TokenVersion < user.TokenVersion {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	claims.Role = user.Role
	return claims, nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// PruneExpired deletes refresh tokens that expired before now minus
// retention.
func (s *Service) PruneExpired(
	ctx context.Context,
	retention time.Duration,
) (int64, error) {
	return s.repo.Prune(ctx, time.Now().Add(-retention))
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	access, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	newTokenID := uuid.New().String()

	refreshTokenEntity := &RefreshToken{
		ID:        newTokenID,
		UserID:    user.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if oldTokenID == nil {
		if err := s.repo.Issue(ctx, refreshTokenEntity); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
	} else if err := s.repo.Rotate(ctx, *oldTokenID, refreshTokenEntity); err != nil {
		if errors.Is(err, ErrTokenReuse) {
			slog.WarnContext(ctx, "concurrent refresh lost the rotation race",
				"user_id", user.ID,
				"family_id", refreshTokenEntity.FamilyID,
			)
			s.revokeFamily(ctx, refreshTokenEntity.FamilyID)
			return nil, ErrTokenReuse
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  access.Token,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(time.Until(access.ExpiresAt).Round(time.Second) / time.Second),
			ExpiresAt:    access.ExpiresAt,
		},
	}, nil
}

func (s *Service) revokeFamily(ctx context.Context, familyID string) {
	if _, err := s.repo.Revoke(ctx, FamilyScope(familyID)); err != nil {
		slog.ErrorContext(ctx, "revoke token family failed",
			"family_id", familyID,
			"error", err,
		)
	}
}

var _ middleware.TokenVerifier = (*Service)(nil)
