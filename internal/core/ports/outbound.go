package ports

import (
	"context"
	"time"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

// CorpusSearcher searches the curated document corpus identified by corpusID.
// Implementations translate sentinel replies with domain.ReadCorpusReply.
type CorpusSearcher interface {
	SearchCorpus(ctx context.Context, query domain.Query, corpusID string) (domain.SearchOutcome, error)
}

// WebSearcher searches the open web. A reply without answer text is an
// error wrapping domain.ErrNoAnswerText.
type WebSearcher interface {
	SearchWeb(ctx context.Context, query domain.Query) (domain.SearchOutcome, error)
}

// ReferenceSource returns the raw rows of the reference table, header included.
type ReferenceSource interface {
	FetchRows(ctx context.Context) ([][]string, error)
}

// ResolutionObserver receives pipeline telemetry.
type ResolutionObserver interface {
	ObserveResolution(outcome string, citations int, duration time.Duration)
	ObserveDirectoryLoad(entries int, err error)
}
