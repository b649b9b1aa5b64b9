package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shinnku-archive/archivesearch/internal/suggest"
	"github.com/shinnku-archive/archivesearch/internal/translit"
)

// Reformulation holds the query variants fed to the fuzzy passes.
type Reformulation struct {
	Raw            string `json:"raw"`
	Transliterated string `json:"transliterated"`
	Suggested      string `json:"suggested,omitempty"`
}

// DefaultQuery is the single-pass query: raw and transliterated text joined
// with no separator.
func (r Reformulation) DefaultQuery() string {
	return r.Raw + r.Transliterated
}

// SuggestedQuery is the seed pass of an assisted search.
func (r Reformulation) SuggestedQuery() string {
	return r.Raw + " " + r.Suggested
}

// TransliteratedQuery is the second pass of an assisted search.
func (r Reformulation) TransliteratedQuery() string {
	return r.Raw + " " + r.Transliterated
}

// Reformulator derives query variants. Enrichment failures never surface:
// a failed suggestion lookup yields an empty suggestion.
type Reformulator struct {
	converter translit.Converter
	suggester Suggester
}

// NewReformulator builds a reformulator. A nil converter leaves queries
// untouched; a nil suggester never suggests.
func NewReformulator(converter translit.Converter, suggester Suggester) *Reformulator {
	if converter == nil {
		converter = translit.Identity{}
	}
	return &Reformulator{converter: converter, suggester: suggester}
}

// Reformulate returns the variants of query. The suggestion service is only
// consulted when withSuggestion is set.
func (r *Reformulator) Reformulate(ctx context.Context, query string, withSuggestion bool) Reformulation {
	out := Reformulation{
		Raw:            query,
		Transliterated: r.converter.Convert(query),
	}
	if withSuggestion {
		out.Suggested = r.suggest(ctx, query)
	}
	return out
}

func (r *Reformulator) suggest(ctx context.Context, query string) string {
	if r.suggester == nil {
		return ""
	}
	name, err := r.suggester.Suggest(ctx, query)
	if err != nil {
		if !errors.Is(err, suggest.ErrNoSuggestion) {
			slog.Debug("suggest_lookup_failed",
				slog.String("query", query),
				slog.String("error", err.Error()))
		}
		return ""
	}
	return name
}
