package mcp

import (
	"time"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	"github.com/shinnku-archive/archivesearch/internal/search"
	"github.com/shinnku-archive/archivesearch/internal/telemetry"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"file name or title to look for, any script"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
	Mode  string `json:"mode,omitempty" jsonschema:"ranking path: default or assisted"`
}

// AssistedInput is the input schema for the search_assisted tool.
type AssistedInput struct {
	Query   string `json:"query" jsonschema:"file name or title to look for, any script"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
	Explain bool   `json:"explain,omitempty" jsonschema:"include the reformulated queries and fused scores"`
}

// SearchOutput is the output schema for both search tools.
type SearchOutput struct {
	Query   *search.Reformulation `json:"query,omitempty" jsonschema:"reformulated queries, present when explain is set"`
	Results []ResultOutput        `json:"results" jsonschema:"ranked entries, best first"`
}

// ResultOutput is one ranked entry.
type ResultOutput struct {
	ID         string   `json:"id" jsonschema:"entry id, the path without the archive prefix"`
	Path       string   `json:"path" jsonschema:"full stored path"`
	Size       int64    `json:"size" jsonschema:"file size in bytes"`
	UploadedAt int64    `json:"uploaded_at,omitempty" jsonschema:"upload time, unix milliseconds"`
	Score      *float64 `json:"score,omitempty" jsonschema:"fused score, lower is better; present when explain is set"`
}

// StatusInput is the input schema for the corpus_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the corpus_status tool.
type StatusOutput struct {
	Entries      int                 `json:"entries"`
	DuplicateIDs int                 `json:"duplicate_ids"`
	TotalBytes   int64               `json:"total_bytes"`
	BuiltAt      time.Time           `json:"built_at"`
	Sources      []string            `json:"sources,omitempty"`
	Queries      *telemetry.Snapshot `json:"queries,omitempty"`
}

func toResult(e corpus.Entry) ResultOutput {
	return ResultOutput{
		ID:         e.ID,
		Path:       e.Record.Path,
		Size:       e.Record.Size,
		UploadedAt: e.Record.UploadedAt,
	}
}

func toResults(entries []corpus.Entry) []ResultOutput {
	out := make([]ResultOutput, len(entries))
	for i, e := range entries {
		out[i] = toResult(e)
	}
	return out
}

func toScoredResults(scored []search.ScoredEntry) []ResultOutput {
	out := make([]ResultOutput, len(scored))
	for i, s := range scored {
		out[i] = toResult(s.Entry)
		out[i].Score = s.Score
	}
	return out
}
