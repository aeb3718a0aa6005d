// AngelaMos | 2026
// dto.go

package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amount accepts a JSON number or a numeric string. Anything else decodes
// to ErrInvalidAmount so handlers can tell a bad amount from a bad body.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	if err := a.Decimal.UnmarshalJSON(b); err != nil {
		return ErrInvalidAmount
	}
	return nil
}

type IssueCardRequest struct {
	OwnerEmail  string `json:"owner_email" validate:"required,email,max=255"`
	Amount      Amount `json:"amount"`
	Description string `json:"description" validate:"max=200"`
}

type RechargeRequest struct {
	Amount Amount `json:"amount"`
}

type DebitRequest struct {
	Amount      Amount `json:"amount"`
	Description string `json:"description" validate:"max=200"`
}

type ScanRequest struct {
	Payload string `json:"payload" validate:"required,max=512"`
}

type TransactionResponse struct {
	ID           string          `json:"id"`
	Kind         Kind            `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Date         time.Time       `json:"date"`
}

type CardResponse struct {
	ID             string                `json:"id"`
	Code           string                `json:"code"`
	Balance        decimal.Decimal       `json:"balance"`
	OriginalAmount decimal.Decimal       `json:"original_amount"`
	OwnerID        string                `json:"owner_id"`
	OwnerName      string                `json:"owner_name"`
	IsActive       bool                  `json:"is_active"`
	Status         string                `json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	History        []TransactionResponse `json:"history"`
}

type CardListResponse struct {
	Cards []CardResponse `json:"cards"`
}

type StatisticsResponse struct {
	TotalCards       int             `json:"total_cards"`
	ActiveCards      int             `json:"active_cards"`
	TotalBalance     decimal.Decimal `json:"total_balance"`
	TotalClientUsers int             `json:"total_client_users"`
}

// ToCardResponse renders a card with at most historyLimit transactions;
// historyLimit <= 0 includes the full history.
func ToCardResponse(c *Card, historyLimit int) CardResponse {
	recent := c.Recent(historyLimit)
	history := make([]TransactionResponse, 0, len(recent))
	for _, tx := range recent {
		history = append(history, TransactionResponse{
			ID:           tx.ID,
			Kind:         tx.Kind,
			Amount:       tx.Amount,
			Description:  tx.Description,
			BalanceAfter: tx.BalanceAfter,
			Date:         tx.CreatedAt,
		})
	}

	return CardResponse{
		ID:             c.ID,
		Code:           c.Code,
		Balance:        c.Balance,
		OriginalAmount: c.OriginalAmount,
		OwnerID:        c.OwnerID,
		OwnerName:      c.OwnerName,
		IsActive:       c.IsActive,
		Status:         c.Status(),
		CreatedAt:      c.CreatedAt,
		History:        history,
	}
}

func ToCardResponseList(cards []Card, historyLimit int) []CardResponse {
	responses := make([]CardResponse, 0, len(cards))
	for i := range cards {
		responses = append(responses, ToCardResponse(&cards[i], historyLimit))
	}
	return responses
}

func ToStatisticsResponse(s *Statistics) StatisticsResponse {
	return StatisticsResponse{
		TotalCards:       s.TotalCards,
		ActiveCards:      s.ActiveCards,
		TotalBalance:     s.TotalBalance,
		TotalClientUsers: s.TotalClientUsers,
	}
}
