// AngelaMos | 2026
// code.go

package ledger

import (
	"github.com/honeydae/giftcards/internal/core"
)

const (
	CodeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeSuffixLen = 6
)

// CodeSource produces candidate card codes. Uniqueness is checked by the
// service, not by the source.
type CodeSource func() (string, error)

func RandomCodes(prefix string) CodeSource {
	return func() (string, error) {
		suffix, err := core.RandomString(CodeAlphabet, CodeSuffixLen)
		if err != nil {
			return "", err
		}
		return prefix + suffix, nil
	}
}
