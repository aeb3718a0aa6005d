// AngelaMos | 2026
// errors.go

package ledger

import (
	"errors"
	"fmt"

	"github.com/honeydae/giftcards/internal/core"
)

var (
	ErrUserNotFound        = fmt.Errorf("owner not found: %w", core.ErrNotFound)
	ErrCardNotFound        = fmt.Errorf("card not found: %w", core.ErrNotFound)
	ErrInvalidAmount       = fmt.Errorf("amount must be a positive number: %w", core.ErrInvalidInput)
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrCodeExhausted       = errors.New("could not generate a unique card code")
)
