package ports

import (
	"context"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

// AnswerService is the single entry point exposed to callers. It never
// returns an error: every failure is folded into a user-safe result.
type AnswerService interface {
	Resolve(ctx context.Context, question string) domain.ResolutionResult
}

// ReferenceLookup resolves document filenames to canonical reference URLs.
type ReferenceLookup interface {
	Resolve(ctx context.Context, filename string) (string, bool)
	Reload(ctx context.Context) (int, error)
}
