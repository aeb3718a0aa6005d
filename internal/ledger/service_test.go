// AngelaMos | 2026
// service_test.go

package ledger

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeydae/giftcards/internal/config"
	"github.com/honeydae/giftcards/internal/core"
)

var codePattern = regexp.MustCompile(`^HONEY-[A-Z0-9]{6}$`)

type fakeOwners struct {
	byEmail map[string]*Owner
}

func newFakeOwners(owners ...*Owner) *fakeOwners {
	f := &fakeOwners{byEmail: make(map[string]*Owner)}
	for _, o := range owners {
		f.byEmail[o.Email] = o
	}
	return f
}

func (f *fakeOwners) LookupByEmail(_ context.Context, email string) (*Owner, error) {
	o, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("lookup: %w", core.ErrNotFound)
	}
	return o, nil
}

func (f *fakeOwners) LookupByID(_ context.Context, id string) (*Owner, error) {
	for _, o := range f.byEmail {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, fmt.Errorf("lookup: %w", core.ErrNotFound)
}

func (f *fakeOwners) CountByRole(_ context.Context, role string) (int, error) {
	n := 0
	for _, o := range f.byEmail {
		if o.Role == role {
			n++
		}
	}
	return n, nil
}

var (
	maria = &Owner{ID: "owner-maria", Email: "maria@example.com", Name: "Maria Silva", Role: RoleClient}
	ana   = &Owner{ID: "owner-ana", Email: "ana@example.com", Name: "Ana Souza", Role: RoleClient}
	boss  = &Owner{ID: "owner-admin", Email: "admin@honeydae.com", Name: "Admin", Role: "admin"}
)

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		CodePrefix:          "HONEY-",
		CodeAttempts:        5,
		IssueDescription:    "Card issued",
		RechargeDescription: "Balance top-up",
		UsageDescription:    "Nail service",
		HistoryPreview:      3,
	}
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewService(
		NewMemoryRepository(),
		newFakeOwners(maria, ana, boss),
		testLedgerConfig(),
		opts...,
	)
}

// sequenceCodes replays codes in order and then repeats the last one.
func sequenceCodes(codes ...string) CodeSource {
	var i int32 = -1
	return func() (string, error) {
		n := int(atomic.AddInt32(&i, 1))
		if n >= len(codes) {
			n = len(codes) - 1
		}
		return codes[n], nil
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func issue(t *testing.T, s *Service, email, amount string) *Card {
	t.Helper()
	card, err := s.IssueCard(context.Background(), IssueParams{
		OwnerEmail: email,
		Amount:     dec(amount),
	})
	require.NoError(t, err)
	return card
}

func assertLedgerConsistent(t *testing.T, card *Card) {
	t.Helper()

	sum := decimal.Zero
	for _, tx := range card.History {
		sum = sum.Add(tx.Amount)
	}
	assert.True(t, card.Balance.Equal(sum),
		"balance %s != sum of history %s", card.Balance, sum)
	assert.False(t, card.Balance.IsNegative())

	require.NotEmpty(t, card.History)
	assert.True(t, card.History[0].BalanceAfter.Equal(card.Balance))

	oldest := card.History[len(card.History)-1]
	assert.Equal(t, KindIssuance, oldest.Kind)
	assert.True(t, oldest.Amount.Equal(card.OriginalAmount))
}

func TestIssueCard(t *testing.T) {
	s := newTestService(t)

	card, err := s.IssueCard(context.Background(), IssueParams{
		OwnerEmail: "Maria@Example.com",
		Amount:     dec("150"),
	})
	require.NoError(t, err)

	assert.Regexp(t, codePattern, card.Code)
	assert.True(t, card.Balance.Equal(dec("150")))
	assert.True(t, card.OriginalAmount.Equal(dec("150")))
	assert.Equal(t, maria.ID, card.OwnerID)
	assert.Equal(t, "Maria Silva", card.OwnerName)
	assert.True(t, card.IsActive)
	assert.Equal(t, StatusActive, card.Status())

	require.Len(t, card.History, 1)
	assert.Equal(t, KindIssuance, card.History[0].Kind)
	assert.Equal(t, "Card issued", card.History[0].Description)
	assert.True(t, card.History[0].Amount.Equal(dec("150")))
	assertLedgerConsistent(t, card)

	stored, err := s.GetCard(context.Background(), card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.Code, stored.Code)
}

func TestIssueCardCustomDescription(t *testing.T) {
	s := newTestService(t)

	card, err := s.IssueCard(context.Background(), IssueParams{
		OwnerEmail:  maria.Email,
		Amount:      dec("50"),
		Description: "  Birthday gift ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Birthday gift", card.History[0].Description)
}

func TestIssueCardUnknownOwner(t *testing.T) {
	s := newTestService(t)

	_, err := s.IssueCard(context.Background(), IssueParams{
		OwnerEmail: "nobody@example.com",
		Amount:     dec("100"),
	})
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)

	cards, err := s.ListCards(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestInvalidAmounts(t *testing.T) {
	amounts := []string{"0", "-10", "0.001", "-0.01"}

	for _, amount := range amounts {
		t.Run(amount, func(t *testing.T) {
			s := newTestService(t)
			ctx := context.Background()

			_, err := s.IssueCard(ctx, IssueParams{
				OwnerEmail: maria.Email,
				Amount:     dec(amount),
			})
			require.ErrorIs(t, err, ErrInvalidAmount)

			card := issue(t, s, maria.Email, "100")

			_, err = s.Recharge(ctx, card.ID, dec(amount))
			require.ErrorIs(t, err, ErrInvalidAmount)

			_, err = s.Debit(ctx, card.ID, dec(amount), "")
			require.ErrorIs(t, err, ErrInvalidAmount)

			stored, err := s.GetCard(ctx, card.ID)
			require.NoError(t, err)
			assert.True(t, stored.Balance.Equal(dec("100")))
			assert.Len(t, stored.History, 1)
		})
	}
}

func TestAmountCeiling(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{name: "one cent over the column limit", amount: "1000000000000"},
		{name: "huge exponent", amount: "1e2000000000"},
		{name: "huge negative exponent", amount: "1e-2000000000"},
		{name: "fifteen digits", amount: "1e15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t)

			done := make(chan error, 1)
			go func() {
				_, err := s.IssueCard(context.Background(), IssueParams{
					OwnerEmail: maria.Email,
					Amount:     dec(tt.amount),
				})
				done <- err
			}()

			select {
			case err := <-done:
				require.ErrorIs(t, err, ErrInvalidAmount)
			case <-time.After(5 * time.Second):
				t.Fatalf("IssueCard(%s) did not return", tt.amount)
			}

			cards, err := s.ListCards(context.Background())
			require.NoError(t, err)
			assert.Empty(t, cards)
		})
	}
}

func TestAmountAtCeilingIsAccepted(t *testing.T) {
	s := newTestService(t)

	card := issue(t, s, maria.Email, "999999999999.99")
	assert.True(t, card.Balance.Equal(DefaultMaxAmount))
}

func TestRechargeCannotExceedMaxBalance(t *testing.T) {
	cfg := testLedgerConfig()
	cfg.MaxAmount = "500"
	s := NewService(NewMemoryRepository(), newFakeOwners(maria), cfg)
	ctx := context.Background()

	card := issue(t, s, maria.Email, "400")

	_, err := s.Recharge(ctx, card.ID, dec("100.01"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = s.IssueCard(ctx, IssueParams{OwnerEmail: maria.Email, Amount: dec("500.01")})
	require.ErrorIs(t, err, ErrInvalidAmount)

	stored, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(dec("400")))
	assert.Len(t, stored.History, 1)

	updated, err := s.Recharge(ctx, card.ID, dec("100"))
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(dec("500")))
}

func TestAmountsRoundToCents(t *testing.T) {
	s := newTestService(t)
	card := issue(t, s, maria.Email, "10.555")

	assert.Equal(t, "10.56", card.Balance.StringFixed(2))
	assert.True(t, card.Balance.Equal(dec("10.56")))
}

func TestIssueCardRetriesCodeCollision(t *testing.T) {
	s := newTestService(t,
		WithCodeSource(sequenceCodes("HONEY-AAAAAA", "HONEY-AAAAAA", "HONEY-BBBBBB")))

	first := issue(t, s, maria.Email, "10")
	second := issue(t, s, ana.Email, "20")

	assert.Equal(t, "HONEY-AAAAAA", first.Code)
	assert.Equal(t, "HONEY-BBBBBB", second.Code)
}

func TestIssueCardCodeExhausted(t *testing.T) {
	s := newTestService(t, WithCodeSource(sequenceCodes("HONEY-AAAAAA")))
	issue(t, s, maria.Email, "10")

	_, err := s.IssueCard(context.Background(), IssueParams{
		OwnerEmail: ana.Email,
		Amount:     dec("10"),
	})
	require.ErrorIs(t, err, ErrCodeExhausted)

	cards, err := s.ListCards(context.Background())
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestRecharge(t *testing.T) {
	s := newTestService(t)
	card := issue(t, s, maria.Email, "100")

	updated, err := s.Recharge(context.Background(), card.ID, dec("25.50"))
	require.NoError(t, err)

	assert.True(t, updated.Balance.Equal(dec("125.50")))
	assert.True(t, updated.OriginalAmount.Equal(dec("100")))
	require.Len(t, updated.History, 2)
	assert.Equal(t, KindRecharge, updated.History[0].Kind)
	assert.Equal(t, "Balance top-up", updated.History[0].Description)
	assert.True(t, updated.History[0].Amount.Equal(dec("25.50")))
	assertLedgerConsistent(t, updated)
}

func TestDebit(t *testing.T) {
	s := newTestService(t)
	card := issue(t, s, maria.Email, "100")

	updated, err := s.Debit(context.Background(), card.ID, dec("30"), "Gel manicure")
	require.NoError(t, err)

	assert.True(t, updated.Balance.Equal(dec("70")))
	require.Len(t, updated.History, 2)
	assert.Equal(t, KindUsage, updated.History[0].Kind)
	assert.Equal(t, "Gel manicure", updated.History[0].Description)
	assert.True(t, updated.History[0].Amount.Equal(dec("-30")))
	assertLedgerConsistent(t, updated)

	updated, err = s.Debit(context.Background(), card.ID, dec("5"), "   ")
	require.NoError(t, err)
	assert.Equal(t, "Nail service", updated.History[0].Description)
}

func TestDebitInsufficientBalance(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	card := issue(t, s, maria.Email, "50")

	_, err := s.Debit(ctx, card.ID, dec("50.01"), "Pedicure")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	stored, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(dec("50")))
	assert.Len(t, stored.History, 1)
}

func TestDebitExactBalanceDepletesCard(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	card := issue(t, s, maria.Email, "80")

	updated, err := s.Debit(ctx, card.ID, dec("80"), "Full set")
	require.NoError(t, err)

	assert.True(t, updated.Balance.IsZero())
	assert.True(t, updated.IsActive)
	assert.Equal(t, StatusDepleted, updated.Status())

	_, err = s.Debit(ctx, card.ID, dec("0.01"), "")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	recharged, err := s.Recharge(ctx, card.ID, dec("20"))
	require.NoError(t, err)
	assert.Equal(t, StatusActive, recharged.Status())
	assertLedgerConsistent(t, recharged)
}

func TestUnknownCard(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{uuid.New().String(), "not-a-uuid", ""} {
		_, err := s.GetCard(ctx, id)
		assert.ErrorIs(t, err, ErrCardNotFound)

		_, err = s.Recharge(ctx, id, dec("10"))
		assert.ErrorIs(t, err, ErrCardNotFound)

		_, err = s.Debit(ctx, id, dec("10"), "")
		assert.ErrorIs(t, err, ErrCardNotFound)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	ctx := context.Background()

	card := issue(t, s, maria.Email, "100")
	_, err := s.Debit(ctx, card.ID, dec("10"), "first")
	require.NoError(t, err)
	_, err = s.Recharge(ctx, card.ID, dec("5"))
	require.NoError(t, err)
	card, err = s.Debit(ctx, card.ID, dec("20"), "last")
	require.NoError(t, err)

	require.Len(t, card.History, 4)
	assert.Equal(t, "last", card.History[0].Description)
	assert.Equal(t, KindRecharge, card.History[1].Kind)
	assert.Equal(t, "first", card.History[2].Description)
	assert.Equal(t, KindIssuance, card.History[3].Kind)

	for i := 1; i < len(card.History); i++ {
		assert.True(t, card.History[i-1].CreatedAt.After(card.History[i].CreatedAt))
	}

	assert.Len(t, card.Recent(3), 3)
	assert.Equal(t, "last", card.Recent(3)[0].Description)
	assert.Len(t, card.Recent(0), 4)
	assertLedgerConsistent(t, card)
}

func TestReturnedCardsAreCopies(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	card := issue(t, s, maria.Email, "100")

	card.Balance = dec("999")
	card.History[0].Description = "tampered"

	stored, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(dec("100")))
	assert.Equal(t, "Card issued", stored.History[0].Description)
}

func TestFindByCode(t *testing.T) {
	s := newTestService(t, WithCodeSource(
		sequenceCodes("HONEY-AB12CD", "HONEY-XY34ZW", "HONEY-AB99QQ")))
	ctx := context.Background()

	issue(t, s, maria.Email, "10")
	issue(t, s, ana.Email, "20")
	issue(t, s, maria.Email, "30")

	cards, err := s.FindByCode(ctx, "ab")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "HONEY-AB12CD", cards[0].Code)
	assert.Equal(t, "HONEY-AB99QQ", cards[1].Code)

	cards, err = s.FindByCode(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, cards)

	cards, err = s.FindByCode(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, cards)

	card, err := s.CardByCode(ctx, "honey-xy34zw")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, card.OwnerID)

	_, err = s.CardByCode(ctx, "HONEY-000000")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestCardsForOwner(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first := issue(t, s, maria.Email, "10")
	issue(t, s, ana.Email, "20")
	second := issue(t, s, maria.Email, "30")

	cards, err := s.CardsForOwner(ctx, maria.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, first.ID, cards[0].ID)
	assert.Equal(t, second.ID, cards[1].ID)

	cards, err = s.CardsForOwner(ctx, boss.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)

	_, err = s.CardsForOwner(ctx, "owner-missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestComputeStatistics(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	stats, err := s.ComputeStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalCards)
	assert.True(t, stats.TotalBalance.IsZero())
	assert.Equal(t, 2, stats.TotalClientUsers)

	issue(t, s, maria.Email, "100")
	depleted := issue(t, s, ana.Email, "40")
	_, err = s.Debit(ctx, depleted.ID, dec("40"), "")
	require.NoError(t, err)
	third := issue(t, s, maria.Email, "25.25")
	_, err = s.Recharge(ctx, third.ID, dec("10"))
	require.NoError(t, err)

	stats, err = s.ComputeStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCards)
	assert.Equal(t, 2, stats.ActiveCards)
	assert.Equal(t, "135.25", stats.TotalBalance.StringFixed(2))
	assert.Equal(t, 2, stats.TotalClientUsers)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	card := issue(t, s, maria.Email, "100")

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)

	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Debit(ctx, card.ID, dec("10"), "")
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, ErrInsufficientBalance):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded.Load())
	assert.Equal(t, int32(15), rejected.Load())

	stored, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.IsZero())
	assert.Len(t, stored.History, 11)
	assertLedgerConsistent(t, stored)
}

func TestMemoryRepositoryBalanceGuard(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	card := &Card{
		ID:             uuid.New().String(),
		Code:           "HONEY-GUARD1",
		Balance:        dec("10"),
		OriginalAmount: dec("10"),
		IsActive:       true,
	}
	require.NoError(t, repo.Create(ctx, card))
	require.ErrorIs(t, repo.Create(ctx, card), core.ErrDuplicateKey)

	stale := Transaction{
		ID:           uuid.New().String(),
		CardID:       card.ID,
		Kind:         KindUsage,
		Amount:       dec("-5"),
		BalanceAfter: dec("15"),
	}
	err := repo.AppendTransaction(ctx, stale, dec("20"))
	require.ErrorIs(t, err, core.ErrConflict)

	stale.CardID = uuid.New().String()
	err = repo.AppendTransaction(ctx, stale, dec("10"))
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryRepositoryCodeIndexIgnoresCase(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	card := &Card{
		ID:             uuid.New().String(),
		Code:           "honey-mixed1",
		Balance:        dec("10"),
		OriginalAmount: dec("10"),
		IsActive:       true,
	}
	require.NoError(t, repo.Create(ctx, card))

	for _, code := range []string{"HONEY-MIXED1", "honey-mixed1", "Honey-Mixed1"} {
		exists, err := repo.ExistsByCode(ctx, code)
		require.NoError(t, err)
		assert.True(t, exists, code)

		found, err := repo.GetByCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, card.ID, found.ID)
	}

	dup := *card
	dup.ID = uuid.New().String()
	dup.Code = "HONEY-MIXED1"
	require.ErrorIs(t, repo.Create(ctx, &dup), core.ErrDuplicateKey)
}
