// AngelaMos | 2026
// dto.go

package user

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/honeydae/giftcards/internal/ledger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type UpdateUserRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=client admin"`
}

type UserResponse struct {
	ID        string               `json:"id"`
	Email     string               `json:"email"`
	Name      string               `json:"name"`
	Role      string               `json:"role"`
	Cards     *CardSummaryResponse `json:"cards,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// CardSummaryResponse is the gift card column of the admin user table.
type CardSummaryResponse struct {
	Count        int             `json:"count"`
	Active       int             `json:"active"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}

type ListUsersParams struct {
	Page     int
	PageSize int
	Search   string
	Role     string
}

// ParseListUsersParams reads page, page_size, search and role from the
// query string. Malformed numbers fall back to defaults; an unknown role
// is an error.
func ParseListUsersParams(r *http.Request) (ListUsersParams, error) {
	q := r.URL.Query()

	p := ListUsersParams{
		Page:     queryInt(q.Get("page"), 1),
		PageSize: queryInt(q.Get("page_size"), defaultPageSize),
		Search:   strings.TrimSpace(q.Get("search")),
		Role:     strings.ToLower(strings.TrimSpace(q.Get("role"))),
	}
	p.Normalize()

	if p.Role != "" && !validRole(p.Role) {
		return p, ErrInvalidRole
	}

	return p, nil
}

func (p *ListUsersParams) Normalize() {
	p.Page = max(p.Page, 1)
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	p.PageSize = min(p.PageSize, maxPageSize)
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ToUserResponseList renders an admin listing. With summaries present
// every client carries a card summary, zero when it owns no cards.
func ToUserResponseList(
	users []User,
	summaries map[string]ledger.OwnerSummary,
) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		resp := ToUserResponse(&users[i])
		if summaries != nil && users[i].Role == RoleClient {
			s := summaries[users[i].ID]
			resp.Cards = &CardSummaryResponse{
				Count:        s.Cards,
				Active:       s.ActiveCards,
				TotalBalance: s.TotalBalance,
			}
		}
		responses = append(responses, resp)
	}
	return responses
}
