// Package output renders CLI results as styled text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	"github.com/shinnku-archive/archivesearch/internal/search"
	"github.com/shinnku-archive/archivesearch/internal/telemetry"
)

// Format selects text or JSON output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (supported: text, json)", s)
}

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer, styled when out is a color-capable terminal.
func New(out io.Writer) *Writer {
	return NewWithColor(out, ShouldColor(out))
}

// NewWithColor creates a Writer with color forced on or off.
func NewWithColor(out io.Writer, color bool) *Writer {
	return &Writer{out: out, styles: GetStyles(!color)}
}

// Status prints a status message with an icon.
// Errors from writing are ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Results prints ranked entries, best first.
func (w *Writer) Results(query string, entries []corpus.Entry) {
	if len(entries) == 0 {
		w.Warningf("No results for %q", query)
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(fmt.Sprintf("%d results for %q", len(entries), query)))
	for i, e := range entries {
		w.entry(i+1, e, nil)
	}
}

// Explained prints the reformulated queries and the scored entries.
func (w *Writer) Explained(r search.Reformulation, scored []search.ScoredEntry) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Queries"))
	w.field("default", r.DefaultQuery())
	if r.Suggested != "" {
		w.field("suggested", r.SuggestedQuery())
	} else {
		w.field("suggested", w.styles.Dim.Render("(none)"))
	}
	w.field("transliterated", r.TransliteratedQuery())
	w.Newline()

	if len(scored) == 0 {
		w.Warningf("No results for %q", r.Raw)
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(fmt.Sprintf("%d results for %q", len(scored), r.Raw)))
	for i, s := range scored {
		w.entry(i+1, s.Entry, s.Score)
	}
}

func (w *Writer) entry(rank int, e corpus.Entry, score *float64) {
	line := fmt.Sprintf("%s %s", w.styles.Rank.Render(fmt.Sprintf("%3d.", rank)), w.styles.ID.Render(e.ID))
	if score != nil {
		line += " " + w.styles.Score.Render(fmt.Sprintf("(%.4f)", *score))
	}
	_, _ = fmt.Fprintln(w.out, line)

	meta := humanize.Bytes(uint64(max(e.Record.Size, 0)))
	if e.Record.UploadedAt > 0 {
		meta += " · uploaded " + humanize.Time(time.UnixMilli(e.Record.UploadedAt))
	}
	_, _ = fmt.Fprintf(w.out, "     %s\n", w.styles.Dim.Render(meta))
}

func (w *Writer) field(label, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.styles.Label.Render(fmt.Sprintf("%-15s", label+":")), value)
}

// CorpusStats prints corpus statistics.
func (w *Writer) CorpusStats(stats corpus.Stats, sources []string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Corpus"))
	w.field("entries", humanize.Comma(int64(stats.Entries)))
	w.field("total size", humanize.Bytes(uint64(max(stats.TotalBytes, 0))))
	if stats.DuplicateIDs > 0 {
		w.field("duplicate ids", w.styles.Warning.Render(humanize.Comma(int64(stats.DuplicateIDs))))
	} else {
		w.field("duplicate ids", "0")
	}
	if len(sources) > 0 {
		w.field("sources", strings.Join(sources, ", "))
	}
}

var latencyOrder = []telemetry.LatencyBucket{
	telemetry.BucketP10,
	telemetry.BucketP50,
	telemetry.BucketP100,
	telemetry.BucketP500,
	telemetry.BucketP1000,
}

var latencyLabels = map[telemetry.LatencyBucket]string{
	telemetry.BucketP10:   "<10ms",
	telemetry.BucketP50:   "10-50ms",
	telemetry.BucketP100:  "50-100ms",
	telemetry.BucketP500:  "100-500ms",
	telemetry.BucketP1000: ">=500ms",
}

// QueryStats prints a telemetry snapshot.
func (w *Writer) QueryStats(snap *telemetry.Snapshot) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Queries"))
	if snap == nil || snap.TotalQueries == 0 {
		w.field("total", "0")
		return
	}
	w.field("total", humanize.Comma(snap.TotalQueries))
	w.field("zero results", fmt.Sprintf("%d (%.1f%%)", snap.ZeroResultCount, snap.ZeroResultPercentage()))
	w.field("fallbacks", humanize.Comma(snap.FallbackCount))
	w.field("repeats", humanize.Comma(snap.ExactRepeatCount))
	for _, mode := range []telemetry.Mode{telemetry.ModeDefault, telemetry.ModeAssisted, telemetry.ModeCombined} {
		if n := snap.ModeCounts[mode]; n > 0 {
			w.field("mode "+string(mode), humanize.Comma(n))
		}
	}

	var peak int64
	for _, n := range snap.LatencyDistribution {
		peak = max(peak, n)
	}
	if peak > 0 {
		w.Newline()
		_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Latency"))
		for _, b := range latencyOrder {
			n := snap.LatencyDistribution[b]
			w.field(latencyLabels[b], fmt.Sprintf("%s %d", w.styles.Bar.Render(renderBar(n, peak, 30)), n))
		}
	}

	if len(snap.TopTerms) > 0 {
		w.Newline()
		_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Top terms"))
		for _, t := range snap.TopTerms[:min(len(snap.TopTerms), 10)] {
			w.field(t.Term, humanize.Comma(t.Count))
		}
	}
	if len(snap.ZeroResultQueries) > 0 {
		w.Newline()
		_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Recent zero-result queries"))
		for _, q := range snap.ZeroResultQueries {
			_, _ = fmt.Fprintf(w.out, "  %s\n", q)
		}
	}
}

// renderBar draws value against peak as a fixed-width bar.
func renderBar(value, peak int64, width int) string {
	if peak <= 0 {
		return strings.Repeat("░", width)
	}
	filled := int(float64(value) / float64(peak) * float64(width))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
