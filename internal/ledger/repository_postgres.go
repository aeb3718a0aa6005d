// AngelaMos | 2026
// repository_postgres.go

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/honeydae/giftcards/internal/core"
)

const cardColumns = `id, code, balance, original_amount, owner_id, owner_name,
		       is_active, created_at`

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, card *Card) error {
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO cards (id, code, balance, original_amount, owner_id,
			                   owner_name, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

		if _, err := tx.ExecContext(ctx, query,
			card.ID,
			strings.ToUpper(card.Code),
			card.Balance,
			card.OriginalAmount,
			card.OwnerID,
			card.OwnerName,
			card.IsActive,
			card.CreatedAt,
		); err != nil {
			return err
		}

		// history is newest first; insert oldest first so seq follows time
		for i := len(card.History) - 1; i >= 0; i-- {
			if err := insertTransaction(ctx, tx, card.History[i]); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create card: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create card: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(
	ctx context.Context,
	id string,
) (*Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`

	var card Card
	err := r.db.GetContext(ctx, &card, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get card: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}

	if err := r.loadHistory(ctx, []*Card{&card}); err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}

	return &card, nil
}

func (r *postgresRepository) GetByCode(
	ctx context.Context,
	code string,
) (*Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE code = $1`

	var card Card
	err := r.db.GetContext(ctx, &card, query, strings.ToUpper(code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get card by code: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get card by code: %w", err)
	}

	if err := r.loadHistory(ctx, []*Card{&card}); err != nil {
		return nil, fmt.Errorf("get card by code: %w", err)
	}

	return &card, nil
}

func (r *postgresRepository) ExistsByCode(
	ctx context.Context,
	code string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM cards WHERE code = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, strings.ToUpper(code)); err != nil {
		return false, fmt.Errorf("check code exists: %w", err)
	}

	return exists, nil
}

func (r *postgresRepository) SearchByCode(
	ctx context.Context,
	query string,
) ([]Card, error) {
	needle := strings.TrimSpace(query)
	if needle == "" {
		return []Card{}, nil
	}

	return r.selectCards(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE code ILIKE $1 ORDER BY seq`,
		"%"+core.EscapeLike(needle)+"%",
	)
}

func (r *postgresRepository) ListByOwner(
	ctx context.Context,
	ownerID string,
) ([]Card, error) {
	return r.selectCards(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE owner_id = $1 ORDER BY seq`,
		ownerID,
	)
}

func (r *postgresRepository) List(ctx context.Context) ([]Card, error) {
	return r.selectCards(ctx,
		`SELECT `+cardColumns+` FROM cards ORDER BY seq`,
	)
}

func (r *postgresRepository) AppendTransaction(
	ctx context.Context,
	tx Transaction,
	previousBalance decimal.Decimal,
) error {
	err := core.InTx(ctx, r.db, func(sqlTx *sqlx.Tx) error {
		result, err := sqlTx.ExecContext(ctx,
			`UPDATE cards SET balance = $2 WHERE id = $1 AND balance = $3`,
			tx.CardID,
			tx.BalanceAfter,
			previousBalance,
		)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if rows == 0 {
			var exists bool
			if err := sqlTx.GetContext(ctx, &exists,
				`SELECT EXISTS(SELECT 1 FROM cards WHERE id = $1)`,
				tx.CardID,
			); err != nil {
				return err
			}
			if !exists {
				return core.ErrNotFound
			}
			return core.ErrConflict
		}

		return insertTransaction(ctx, sqlTx, tx)
	})
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}

	return nil
}

func (r *postgresRepository) Totals(ctx context.Context) (*Totals, error) {
	query := `
		SELECT COUNT(*) AS total_cards,
		       COUNT(*) FILTER (WHERE is_active AND balance > 0) AS active_cards,
		       COALESCE(SUM(balance), 0) AS total_balance
		FROM cards`

	var totals Totals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("card totals: %w", err)
	}

	return &totals, nil
}

func (r *postgresRepository) SummarizeOwners(
	ctx context.Context,
	ownerIDs []string,
) (map[string]OwnerSummary, error) {
	summaries := make(map[string]OwnerSummary)
	if len(ownerIDs) == 0 {
		return summaries, nil
	}

	query, args, err := sqlx.In(`
		SELECT owner_id,
		       COUNT(*) AS cards,
		       COUNT(*) FILTER (WHERE is_active AND balance > 0) AS active_cards,
		       COALESCE(SUM(balance), 0) AS total_balance
		FROM cards
		WHERE owner_id IN (?)
		GROUP BY owner_id`, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("build owner summary query: %w", err)
	}

	var rows []struct {
		OwnerID string `db:"owner_id"`
		OwnerSummary
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("summarize owners: %w", err)
	}

	for _, row := range rows {
		summaries[row.OwnerID] = row.OwnerSummary
	}

	return summaries, nil
}

func (r *postgresRepository) selectCards(
	ctx context.Context,
	query string,
	args ...any,
) ([]Card, error) {
	cards := []Card{}
	if err := r.db.SelectContext(ctx, &cards, query, args...); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	ptrs := make([]*Card, len(cards))
	for i := range cards {
		ptrs[i] = &cards[i]
	}

	if err := r.loadHistory(ctx, ptrs); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	return cards, nil
}

func (r *postgresRepository) loadHistory(ctx context.Context, cards []*Card) error {
	if len(cards) == 0 {
		return nil
	}

	ids := make([]string, 0, len(cards))
	index := make(map[string]*Card, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
		index[c.ID] = c
		c.History = []Transaction{}
	}

	query, args, err := sqlx.In(`
		SELECT id, card_id, kind, amount, description, balance_after, created_at
		FROM card_transactions
		WHERE card_id IN (?)
		ORDER BY seq DESC`, ids)
	if err != nil {
		return fmt.Errorf("build history query: %w", err)
	}

	var txs []Transaction
	if err := r.db.SelectContext(ctx, &txs, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	for _, tx := range txs {
		if c, ok := index[tx.CardID]; ok {
			c.History = append(c.History, tx)
		}
	}

	return nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, t Transaction) error {
	query := `
		INSERT INTO card_transactions (id, card_id, kind, amount, description,
		                               balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.ExecContext(ctx, query,
		t.ID,
		t.CardID,
		string(t.Kind),
		t.Amount,
		t.Description,
		t.BalanceAfter,
		t.CreatedAt,
	)
	return err
}
