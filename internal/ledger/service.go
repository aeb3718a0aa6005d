// AngelaMos | 2026
// service.go

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/honeydae/giftcards/internal/config"
	"github.com/honeydae/giftcards/internal/core"
)

const RoleClient = "client"

// DefaultMaxAmount is the largest value a NUMERIC(14, 2) column holds.
var DefaultMaxAmount = decimal.RequireFromString("999999999999.99")

// maxAmountScale bounds the fractional digits accepted before rounding.
const maxAmountScale = 18

// Owner is the ledger's view of a user.
type Owner struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// OwnerProvider resolves card owners. Lookups that find nothing must return
// an error wrapping core.ErrNotFound.
type OwnerProvider interface {
	LookupByEmail(ctx context.Context, email string) (*Owner, error)
	LookupByID(ctx context.Context, id string) (*Owner, error)
	CountByRole(ctx context.Context, role string) (int, error)
}

type IssueParams struct {
	OwnerEmail  string
	Amount      decimal.Decimal
	Description string
}

// Service is the card ledger. Mutations are serialized by mu so that the
// read-validate-write sequence of one operation never interleaves with
// another; the repository's balance guard catches writers in other
// processes.
type Service struct {
	mu     sync.RWMutex
	repo   Repository
	owners OwnerProvider
	codes  CodeSource
	cfg    config.LedgerConfig
	max    decimal.Decimal
	now    func() time.Time
}

type Option func(*Service)

func WithCodeSource(src CodeSource) Option {
	return func(s *Service) { s.codes = src }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	repo Repository,
	owners OwnerProvider,
	cfg config.LedgerConfig,
	opts ...Option,
) *Service {
	cfg.CodePrefix = strings.ToUpper(cfg.CodePrefix)
	if cfg.CodeAttempts < 1 {
		cfg.CodeAttempts = 1
	}

	maxAmount, err := decimal.NewFromString(cfg.MaxAmount)
	if err != nil || !maxAmount.IsPositive() || maxAmount.GreaterThan(DefaultMaxAmount) {
		maxAmount = DefaultMaxAmount
	}

	s := &Service{
		repo:   repo,
		owners: owners,
		codes:  RandomCodes(cfg.CodePrefix),
		cfg:    cfg,
		max:    maxAmount,
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) IssueCard(ctx context.Context, p IssueParams) (*Card, error) {
	ctx, span := core.StartSpan(ctx, "ledger.IssueCard")
	defer span.End()

	amount, err := s.normalizeAmount(p.Amount)
	if err != nil {
		return nil, fmt.Errorf("issue card: %w", err)
	}

	owner, err := s.owners.LookupByEmail(ctx, strings.TrimSpace(p.OwnerEmail))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("issue card: %w", ErrUserNotFound)
		}
		return nil, fmt.Errorf("issue card: lookup owner: %w", err)
	}

	description := strings.TrimSpace(p.Description)
	if description == "" {
		description = s.cfg.IssueDescription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cardID := uuid.New().String()

	for attempt := 0; attempt < s.cfg.CodeAttempts; attempt++ {
		code, codeErr := s.codes()
		if codeErr != nil {
			return nil, fmt.Errorf("issue card: generate code: %w", codeErr)
		}

		exists, existsErr := s.repo.ExistsByCode(ctx, code)
		if existsErr != nil {
			return nil, fmt.Errorf("issue card: %w", existsErr)
		}
		if exists {
			core.AddSpanEvent(ctx, "card.code_collision",
				attribute.String("code", code))
			continue
		}

		card := &Card{
			ID:             cardID,
			Code:           code,
			Balance:        amount,
			OriginalAmount: amount,
			OwnerID:        owner.ID,
			OwnerName:      owner.Name,
			IsActive:       true,
			CreatedAt:      now,
			History: []Transaction{{
				ID:           uuid.New().String(),
				CardID:       cardID,
				Kind:         KindIssuance,
				Amount:       amount,
				Description:  description,
				BalanceAfter: amount,
				CreatedAt:    now,
			}},
		}

		if createErr := s.repo.Create(ctx, card); createErr != nil {
			if errors.Is(createErr, core.ErrDuplicateKey) {
				continue
			}
			return nil, fmt.Errorf("issue card: %w", createErr)
		}

		core.AddSpanEvent(ctx, "card.issued",
			attribute.String("card_id", card.ID),
			attribute.String("code", card.Code),
			attribute.String("amount", amount.StringFixed(2)),
		)
		slog.InfoContext(ctx, "card issued",
			"card_id", card.ID,
			"code", card.Code,
			"owner_id", owner.ID,
			"amount", amount.StringFixed(2),
		)

		return card, nil
	}

	core.SetSpanError(ctx, ErrCodeExhausted)
	return nil, fmt.Errorf("issue card: %w", ErrCodeExhausted)
}

func (s *Service) Recharge(
	ctx context.Context,
	cardID string,
	amount decimal.Decimal,
) (*Card, error) {
	ctx, span := core.StartSpan(ctx, "ledger.Recharge",
		attribute.String("card_id", cardID))
	defer span.End()

	amount, err := s.normalizeAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("recharge: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	card, err := s.getCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("recharge: %w", err)
	}

	if card.Balance.Add(amount).GreaterThan(s.max) {
		core.AddSpanEvent(ctx, "card.recharge_rejected",
			attribute.String("balance", card.Balance.StringFixed(2)),
			attribute.String("amount", amount.StringFixed(2)),
		)
		return nil, fmt.Errorf("recharge: balance would exceed %s: %w",
			s.max.StringFixed(2), ErrInvalidAmount)
	}

	tx := s.newTransaction(card, KindRecharge, amount, s.cfg.RechargeDescription)
	if err := s.commit(ctx, card, tx); err != nil {
		return nil, fmt.Errorf("recharge: %w", err)
	}

	slog.InfoContext(ctx, "card recharged",
		"card_id", card.ID,
		"amount", amount.StringFixed(2),
		"balance", card.Balance.StringFixed(2),
	)

	return card, nil
}

func (s *Service) Debit(
	ctx context.Context,
	cardID string,
	amount decimal.Decimal,
	description string,
) (*Card, error) {
	ctx, span := core.StartSpan(ctx, "ledger.Debit",
		attribute.String("card_id", cardID))
	defer span.End()

	amount, err := s.normalizeAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("debit: %w", err)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = s.cfg.UsageDescription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	card, err := s.getCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("debit: %w", err)
	}

	if amount.GreaterThan(card.Balance) {
		core.AddSpanEvent(ctx, "card.debit_rejected",
			attribute.String("balance", card.Balance.StringFixed(2)),
			attribute.String("amount", amount.StringFixed(2)),
		)
		return nil, fmt.Errorf("debit: %w", ErrInsufficientBalance)
	}

	tx := s.newTransaction(card, KindUsage, amount.Neg(), description)
	if err := s.commit(ctx, card, tx); err != nil {
		return nil, fmt.Errorf("debit: %w", err)
	}

	slog.InfoContext(ctx, "card debited",
		"card_id", card.ID,
		"amount", amount.StringFixed(2),
		"balance", card.Balance.StringFixed(2),
	)

	return card, nil
}

func (s *Service) GetCard(ctx context.Context, cardID string) (*Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getCard(ctx, cardID)
}

// CardByCode looks up a card by its exact code, ignoring case.
func (s *Service) CardByCode(ctx context.Context, code string) (*Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, err := s.repo.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}

	return card, nil
}

// FindByCode returns every card whose code contains query, ignoring case.
// A blank query matches nothing.
func (s *Service) FindByCode(ctx context.Context, query string) ([]Card, error) {
	if strings.TrimSpace(query) == "" {
		return []Card{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.repo.SearchByCode(ctx, query)
}

func (s *Service) CardsForOwner(ctx context.Context, ownerID string) ([]Card, error) {
	if _, err := s.owners.LookupByID(ctx, ownerID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("cards for owner: %w", ErrUserNotFound)
		}
		return nil, fmt.Errorf("cards for owner: lookup owner: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.repo.ListByOwner(ctx, ownerID)
}

// SummariesForOwners reports card count, active count and balance per
// owner for the admin user table.
func (s *Service) SummariesForOwners(
	ctx context.Context,
	ownerIDs []string,
) (map[string]OwnerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries, err := s.repo.SummarizeOwners(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("summaries for owners: %w", err)
	}
	return summaries, nil
}

func (s *Service) ListCards(ctx context.Context) ([]Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.repo.List(ctx)
}

func (s *Service) ComputeStatistics(ctx context.Context) (*Statistics, error) {
	s.mu.RLock()
	totals, err := s.repo.Totals(ctx)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}

	clients, err := s.owners.CountByRole(ctx, RoleClient)
	if err != nil {
		return nil, fmt.Errorf("compute statistics: count clients: %w", err)
	}

	return &Statistics{
		TotalCards:       totals.TotalCards,
		ActiveCards:      totals.ActiveCards,
		TotalBalance:     totals.TotalBalance,
		TotalClientUsers: clients,
	}, nil
}

// HistoryPreview is how many transactions card summaries show by default.
func (s *Service) HistoryPreview() int {
	return s.cfg.HistoryPreview
}

func (s *Service) getCard(ctx context.Context, cardID string) (*Card, error) {
	if _, err := uuid.Parse(cardID); err != nil {
		return nil, ErrCardNotFound
	}

	card, err := s.repo.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}

	return card, nil
}

func (s *Service) newTransaction(
	card *Card,
	kind Kind,
	signedAmount decimal.Decimal,
	description string,
) Transaction {
	return Transaction{
		ID:           uuid.New().String(),
		CardID:       card.ID,
		Kind:         kind,
		Amount:       signedAmount,
		Description:  description,
		BalanceAfter: card.Balance.Add(signedAmount),
		CreatedAt:    s.now(),
	}
}

func (s *Service) commit(ctx context.Context, card *Card, tx Transaction) error {
	if err := s.repo.AppendTransaction(ctx, tx, card.Balance); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrCardNotFound
		}
		core.SetSpanError(ctx, err)
		return err
	}

	card.apply(tx)
	return nil
}

// normalizeAmount rounds to cents and enforces (0, max]. Magnitude and
// scale are checked on the exponent first: rounding 1e2000000000 would
// materialize a two billion digit integer.
func (s *Service) normalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	exp := int64(amount.Exponent())
	if exp < -maxAmountScale {
		return decimal.Zero, ErrInvalidAmount
	}

	limitDigits := int64(s.max.Exponent()) + int64(s.max.NumDigits())
	if exp+int64(amount.NumDigits()) > limitDigits {
		return decimal.Zero, ErrInvalidAmount
	}

	rounded := amount.Round(2)
	if !rounded.IsPositive() || rounded.GreaterThan(s.max) {
		return decimal.Zero, ErrInvalidAmount
	}
	return rounded, nil
}
