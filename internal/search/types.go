// Package search ranks corpus entries against free-text queries.
//
// A search runs one or more fuzzy passes over the same corpus snapshot and,
// on the assisted path, fuses the passes with a mean-score policy:
//
//	default:  match(q + translit(q))
//	assisted: fuse(match(q + " " + suggest(q)), match(q + " " + translit(q)))
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
	"github.com/shinnku-archive/archivesearch/internal/telemetry"
)

const (
	// DefaultThreshold is the worst fuzzy score a pass keeps.
	DefaultThreshold = 0.78

	// DefaultLimit is the result count used when callers do not pick one.
	DefaultLimit = 100
)

// ScoredEntry is an entry with the score of the pass that produced it.
// Lower is better. A nil Score means the producer had no confidence signal.
type ScoredEntry struct {
	Entry corpus.Entry `json:"entry"`
	Score *float64     `json:"score,omitempty"`
}

// Scored builds a ScoredEntry with a score.
func Scored(e corpus.Entry, score float64) ScoredEntry {
	return ScoredEntry{Entry: e, Score: &score}
}

// truthy reports whether the entry carries a usable score. Zero counts as
// missing.
func (s ScoredEntry) truthy() bool {
	return s.Score != nil && *s.Score != 0
}

func (s ScoredEntry) value() float64 {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}

// Entries strips the scores.
func Entries(scored []ScoredEntry) []corpus.Entry {
	out := make([]corpus.Entry, len(scored))
	for i, s := range scored {
		out[i] = s.Entry
	}
	return out
}

// Mode selects a search path.
type Mode string

const (
	ModeDefault  Mode = "default"
	ModeAssisted Mode = "assisted"
	// ModeCombined fuses two caller-given queries. It is not user selectable.
	ModeCombined Mode = "combined"
)

// ParseMode converts a user supplied mode. Empty means default.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDefault:
		return ModeDefault, nil
	case ModeAssisted:
		return ModeAssisted, nil
	default:
		return "", apperrors.New(apperrors.ErrCodeInvalidMode,
			fmt.Sprintf("unknown search mode %q", s), nil).
			WithSuggestion("Use 'default' or 'assisted'")
	}
}

// Suggester resolves a query to a canonical name. Implementations may fail;
// the reformulator treats any error as "no suggestion".
type Suggester interface {
	Suggest(ctx context.Context, query string) (string, error)
}

// Recorder receives one event per served search.
type Recorder interface {
	Record(event telemetry.QueryEvent)
}
