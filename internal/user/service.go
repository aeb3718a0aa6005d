// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/honeydae/giftcards/internal/auth"
	"github.com/honeydae/giftcards/internal/core"
	"github.com/honeydae/giftcards/internal/ledger"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Create registers a client. It is the only way accounts are created over
// the API.
func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.UserInfo, error) {
	user := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Role:         RoleClient,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) LookupByEmail(
	ctx context.Context,
	email string,
) (*ledger.Owner, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toOwner(user), nil
}

func (s *Service) LookupByID(ctx context.Context, id string) (*ledger.Owner, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toOwner(user), nil
}

func (s *Service) CountByRole(ctx context.Context, role string) (int, error) {
	return s.repo.CountByRole(ctx, role)
}

// EnsureAccount creates the account if the email is free and otherwise
// leaves the stored one untouched, so restarts never reset a password
// that was changed after the first boot.
func (s *Service) EnsureAccount(
	ctx context.Context,
	email, password, name, role string,
) (*User, bool, error) {
	if !validRole(role) {
		return nil, false, fmt.Errorf(
			"ensure account: %q: %w",
			role,
			ErrInvalidRole,
		)
	}

	email = normalizeEmail(email)

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, false, fmt.Errorf("ensure account: %w", err)
	}

	hash, err := core.HashPassword(password)
	if err != nil {
		return nil, false, fmt.Errorf("ensure account: hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("ensure account: %w", err)
	}

	slog.InfoContext(ctx, "account created",
		"user_id", user.ID,
		"email", user.Email,
		"role", user.Role,
	)

	return user, true, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateUserRole changes a role. Admins cannot demote themselves, which
// would leave the salon without anyone able to issue cards.
func (s *Service) UpdateUserRole(
	ctx context.Context,
	requesterID, id, role string,
) (*User, error) {
	if !validRole(role) {
		return nil, fmt.Errorf(
			"update role: %q: %w",
			role,
			ErrInvalidRole,
		)
	}

	if requesterID == id && role != RoleAdmin {
		return nil, fmt.Errorf("update role: cannot demote yourself: %w",
			core.ErrForbidden)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Role = role

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, userID, req)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
		CreatedAt:    u.CreatedAt,
	}
}

func toOwner(u *User) *ledger.Owner {
	return &ledger.Owner{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

var (
	_ auth.UserProvider    = (*Service)(nil)
	_ ledger.OwnerProvider = (*Service)(nil)
)
