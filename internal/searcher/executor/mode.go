package executor

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Mode selects how per-term document sets are combined.
type Mode int

const (
	// ModeDefault means "use the executor's configured mode".
	ModeDefault Mode = iota
	// ModeAndFallbackOr requires every term and, when that finds nothing,
	// retries with any term.
	ModeAndFallbackOr
	ModeAnd
	ModeOr
)

func (m Mode) String() string {
	switch m {
	case ModeAndFallbackOr:
		return "and_fallback_or"
	case ModeAnd:
		return "and"
	case ModeOr:
		return "or"
	default:
		return "default"
	}
}

// ParseMode accepts the names produced by String. An empty name yields
// ModeDefault.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ModeDefault, nil
	case "and_fallback_or", "fallback":
		return ModeAndFallbackOr, nil
	case "and":
		return ModeAnd, nil
	case "or":
		return ModeOr, nil
	default:
		return ModeDefault, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest,
			fmt.Sprintf("unknown mode %q (want and, or or and_fallback_or)", s))
	}
}
