package facematch

import (
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/text/width"
)

// NormalizeIdentityInput folds full-width characters to their ASCII form and trims
// surrounding whitespace (e.g., " １２３ " -> "123").
func NormalizeIdentityInput(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}

// ParseIdentity parses an identity given either as a plain integer ("123") or as a chat
// mention ("<@123>", "<@!123>").
func ParseIdentity(s string) (Identity, error) {
	raw := NormalizeIdentityInput(s)
	digits := raw
	if strings.HasPrefix(raw, "<@") && strings.HasSuffix(raw, ">") {
		digits = strings.TrimPrefix(strings.TrimSuffix(raw[2:], ">"), "!")
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, goerr.Wrap(ErrInvalidInput, "identity must be an integer or a mention", goerr.V("input", s))
	}
	return Identity(id), nil
}
