// AngelaMos | 2026
// entity.go

package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindIssuance Kind = "issuance"
	KindRecharge Kind = "recharge"
	KindUsage    Kind = "usage"
)

const (
	StatusActive   = "active"
	StatusDepleted = "depleted"
)

// Transaction is an immutable record of one balance change. Amount is
// positive for issuance and recharge, negative for usage.
type Transaction struct {
	ID           string          `db:"id"`
	CardID       string          `db:"card_id"`
	Kind         Kind            `db:"kind"`
	Amount       decimal.Decimal `db:"amount"`
	Description  string          `db:"description"`
	BalanceAfter decimal.Decimal `db:"balance_after"`
	CreatedAt    time.Time       `db:"created_at"`
}

// Card is a prepaid balance owned by one user. History is newest first.
//
// OwnerName is copied from the owner at issuance; renaming the owner later
// does not touch existing cards.
type Card struct {
	ID             string          `db:"id"`
	Code           string          `db:"code"`
	Balance        decimal.Decimal `db:"balance"`
	OriginalAmount decimal.Decimal `db:"original_amount"`
	OwnerID        string          `db:"owner_id"`
	OwnerName      string          `db:"owner_name"`
	IsActive       bool            `db:"is_active"`
	CreatedAt      time.Time       `db:"created_at"`
	History        []Transaction   `db:"-"`
}

// IsEffectivelyActive is the definition used by statistics: the flag is
// set and there is money left on the card.
func (c *Card) IsEffectivelyActive() bool {
	return c.IsActive && c.Balance.IsPositive()
}

func (c *Card) Status() string {
	if c.IsEffectivelyActive() {
		return StatusActive
	}
	return StatusDepleted
}

// Recent returns at most n of the newest transactions. n <= 0 means all.
func (c *Card) Recent(n int) []Transaction {
	if n <= 0 || n >= len(c.History) {
		return c.History
	}
	return c.History[:n]
}

func (c *Card) apply(tx Transaction) {
	c.Balance = tx.BalanceAfter
	history := make([]Transaction, 0, len(c.History)+1)
	history = append(history, tx)
	c.History = append(history, c.History...)
}

func (c *Card) clone() *Card {
	cp := *c
	cp.History = make([]Transaction, len(c.History))
	copy(cp.History, c.History)
	return &cp
}

type Statistics struct {
	TotalCards       int
	ActiveCards      int
	TotalBalance     decimal.Decimal
	TotalClientUsers int
}

// Totals is the card-side half of Statistics, computed by the repository.
type Totals struct {
	TotalCards   int             `db:"total_cards"`
	ActiveCards  int             `db:"active_cards"`
	TotalBalance decimal.Decimal `db:"total_balance"`
}

// OwnerSummary aggregates the cards of one owner.
type OwnerSummary struct {
	Cards        int             `db:"cards"`
	ActiveCards  int             `db:"active_cards"`
	TotalBalance decimal.Decimal `db:"total_balance"`
}
