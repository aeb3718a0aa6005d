// AngelaMos | 2026
// bootstrap.go

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/honeydae/giftcards/internal/config"
	"github.com/honeydae/giftcards/internal/ledger"
	"github.com/honeydae/giftcards/internal/user"
)

const (
	demoClientEmail    = "cliente@email.com"
	demoClientPassword = "cliente123"
	demoClientName     = "María García"
)

type demoUsage struct {
	amount      int64
	description string
}

var demoUsages = []demoUsage{
	{300, "Manicure completo"},
	{200, "Pedicure"},
}

// bootstrap ensures the configured administrator exists and, when asked,
// seeds a demo client holding one partly used card.
func bootstrap(
	ctx context.Context,
	cfg config.BootstrapConfig,
	users *user.Service,
	cards *ledger.Service,
	logger *slog.Logger,
) error {
	if cfg.AdminEmail != "" {
		admin, created, err := users.EnsureAccount(
			ctx,
			cfg.AdminEmail,
			cfg.AdminPassword,
			cfg.AdminName,
			user.RoleAdmin,
		)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if !created && !admin.IsAdmin() {
			logger.Warn("bootstrap admin email belongs to a non-admin account",
				"email", admin.Email,
			)
		}
	} else {
		logger.Warn("no bootstrap admin configured; nobody can issue cards " +
			"until an existing admin promotes a user")
	}

	if !cfg.SeedDemo {
		return nil
	}

	return seedDemo(ctx, users, cards, logger)
}

func seedDemo(
	ctx context.Context,
	users *user.Service,
	cards *ledger.Service,
	logger *slog.Logger,
) error {
	client, _, err := users.EnsureAccount(
		ctx,
		demoClientEmail,
		demoClientPassword,
		demoClientName,
		user.RoleClient,
	)
	if err != nil {
		return fmt.Errorf("seed demo client: %w", err)
	}

	existing, err := cards.CardsForOwner(ctx, client.ID)
	if err != nil {
		return fmt.Errorf("seed demo card: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	card, err := cards.IssueCard(ctx, ledger.IssueParams{
		OwnerEmail: client.Email,
		Amount:     decimal.NewFromInt(1000),
	})
	if err != nil {
		return fmt.Errorf("seed demo card: %w", err)
	}

	for _, u := range demoUsages {
		card, err = cards.Debit(ctx, card.ID, decimal.NewFromInt(u.amount), u.description)
		if err != nil {
			return fmt.Errorf("seed demo usage: %w", err)
		}
	}

	logger.Info("demo data seeded",
		"client", client.Email,
		"card", card.Code,
		"balance", card.Balance.StringFixed(2),
	)

	return nil
}
