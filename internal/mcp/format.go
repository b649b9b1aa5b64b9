package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shinnku-archive/archivesearch/internal/search"
)

// FormatResults formats ranked entries as markdown.
func FormatResults(query string, results []ResultOutput) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

// FormatExplained formats an assisted search with its reformulated queries.
func FormatExplained(r search.Reformulation, results []ResultOutput) string {
	var sb strings.Builder
	sb.WriteString("**Queries:**\n\n")
	fmt.Fprintf(&sb, "- default: `%s`\n", r.DefaultQuery())
	if r.Suggested != "" {
		fmt.Fprintf(&sb, "- suggested: `%s`\n", r.SuggestedQuery())
	}
	fmt.Fprintf(&sb, "- transliterated: `%s`\n\n", r.TransliteratedQuery())
	sb.WriteString(FormatResults(r.Raw, results))
	return sb.String()
}

// FormatStatus formats corpus_status output as markdown.
func FormatStatus(s StatusOutput) string {
	var sb strings.Builder
	sb.WriteString("## Corpus Status\n\n")
	fmt.Fprintf(&sb, "- **Entries:** %s\n", humanize.Comma(int64(s.Entries)))
	fmt.Fprintf(&sb, "- **Total size:** %s\n", humanize.Bytes(uint64(max(s.TotalBytes, 0))))
	if s.DuplicateIDs > 0 {
		fmt.Fprintf(&sb, "- **Duplicate ids:** %d\n", s.DuplicateIDs)
	}
	if !s.BuiltAt.IsZero() {
		fmt.Fprintf(&sb, "- **Loaded:** %s\n", humanize.Time(s.BuiltAt))
	}
	if len(s.Sources) > 0 {
		fmt.Fprintf(&sb, "- **Sources:** %s\n", strings.Join(s.Sources, ", "))
	}

	if q := s.Queries; q != nil {
		sb.WriteString("\n### Queries\n\n")
		fmt.Fprintf(&sb, "- **Total:** %d (since %s)\n", q.TotalQueries, humanize.Time(q.Since))
		fmt.Fprintf(&sb, "- **Zero results:** %d (%.1f%%)\n", q.ZeroResultCount, q.ZeroResultPercentage())
		fmt.Fprintf(&sb, "- **Assisted fallbacks:** %d\n", q.FallbackCount)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r ResultOutput) {
	fmt.Fprintf(sb, "%d. **%s**", num, r.ID)
	if r.Score != nil {
		fmt.Fprintf(sb, " (score: %.4f)", *r.Score)
	}
	sb.WriteString("\n")

	meta := []string{humanize.Bytes(uint64(max(r.Size, 0)))}
	if r.UploadedAt > 0 {
		meta = append(meta, "uploaded "+humanize.Time(time.UnixMilli(r.UploadedAt)))
	}
	fmt.Fprintf(sb, "   `%s` · %s\n", r.Path, strings.Join(meta, " · "))
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, lo, hi int) int {
	if limit <= 0 {
		return defaultVal
	}
	return min(max(limit, lo), hi)
}
