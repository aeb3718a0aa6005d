// AngelaMos | 2026
// repository.go

package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/honeydae/giftcards/internal/core"
)

// Repository stores cards and their transactions. Cards returned by a
// Repository are copies; mutating them does not change stored state.
type Repository interface {
	Create(ctx context.Context, card *Card) error
	GetByID(ctx context.Context, id string) (*Card, error)
	GetByCode(ctx context.Context, code string) (*Card, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	SearchByCode(ctx context.Context, query string) ([]Card, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Card, error)
	List(ctx context.Context) ([]Card, error)
	// AppendTransaction records tx and moves the card balance from
	// previousBalance to tx.BalanceAfter. It fails with core.ErrConflict if
	// the stored balance is no longer previousBalance.
	AppendTransaction(
		ctx context.Context,
		tx Transaction,
		previousBalance decimal.Decimal,
	) error
	Totals(ctx context.Context) (*Totals, error)
	// SummarizeOwners returns card summaries keyed by owner id. Owners
	// without cards are absent from the map.
	SummarizeOwners(ctx context.Context, ownerIDs []string) (map[string]OwnerSummary, error)
}

type memoryRepository struct {
	mu     sync.RWMutex
	cards  map[string]*Card
	byCode map[string]string
	order  []string
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		cards:  make(map[string]*Card),
		byCode: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, card *Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToUpper(card.Code)
	if _, ok := r.byCode[key]; ok {
		return fmt.Errorf("create card: %w", core.ErrDuplicateKey)
	}
	if _, ok := r.cards[card.ID]; ok {
		return fmt.Errorf("create card: %w", core.ErrDuplicateKey)
	}

	r.cards[card.ID] = card.clone()
	r.byCode[key] = card.ID
	r.order = append(r.order, card.ID)

	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	card, ok := r.cards[id]
	if !ok {
		return nil, fmt.Errorf("get card: %w", core.ErrNotFound)
	}

	return card.clone(), nil
}

func (r *memoryRepository) GetByCode(
	_ context.Context,
	code string,
) (*Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, fmt.Errorf("get card by code: %w", core.ErrNotFound)
	}

	return r.cards[id].clone(), nil
}

func (r *memoryRepository) ExistsByCode(
	_ context.Context,
	code string,
) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byCode[strings.ToUpper(code)]
	return ok, nil
}

func (r *memoryRepository) SearchByCode(
	_ context.Context,
	query string,
) ([]Card, error) {
	needle := strings.ToUpper(strings.TrimSpace(query))
	if needle == "" {
		return []Card{}, nil
	}

	return r.filter(func(c *Card) bool {
		return strings.Contains(strings.ToUpper(c.Code), needle)
	}), nil
}

func (r *memoryRepository) ListByOwner(
	_ context.Context,
	ownerID string,
) ([]Card, error) {
	return r.filter(func(c *Card) bool {
		return c.OwnerID == ownerID
	}), nil
}

func (r *memoryRepository) List(_ context.Context) ([]Card, error) {
	return r.filter(func(*Card) bool { return true }), nil
}

func (r *memoryRepository) AppendTransaction(
	_ context.Context,
	tx Transaction,
	previousBalance decimal.Decimal,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	card, ok := r.cards[tx.CardID]
	if !ok {
		return fmt.Errorf("append transaction: %w", core.ErrNotFound)
	}

	if !card.Balance.Equal(previousBalance) {
		return fmt.Errorf("append transaction: %w", core.ErrConflict)
	}

	card.apply(tx)
	return nil
}

func (r *memoryRepository) Totals(_ context.Context) (*Totals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	totals := &Totals{TotalBalance: decimal.Zero}
	for _, card := range r.cards {
		totals.TotalCards++
		if card.IsEffectivelyActive() {
			totals.ActiveCards++
		}
		totals.TotalBalance = totals.TotalBalance.Add(card.Balance)
	}

	return totals, nil
}

func (r *memoryRepository) SummarizeOwners(
	_ context.Context,
	ownerIDs []string,
) (map[string]OwnerSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		wanted[id] = true
	}

	summaries := make(map[string]OwnerSummary)
	for _, card := range r.cards {
		if !wanted[card.OwnerID] {
			continue
		}
		s := summaries[card.OwnerID]
		s.Cards++
		if card.IsEffectivelyActive() {
			s.ActiveCards++
		}
		s.TotalBalance = s.TotalBalance.Add(card.Balance)
		summaries[card.OwnerID] = s
	}

	return summaries, nil
}

func (r *memoryRepository) filter(keep func(*Card) bool) []Card {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cards := make([]Card, 0)
	for _, id := range r.order {
		card := r.cards[id]
		if keep(card) {
			cards = append(cards, *card.clone())
		}
	}

	return cards
}
