package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shinnku-archive/archivesearch/internal/corpus"
	"github.com/shinnku-archive/archivesearch/internal/suggest"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Snapshot names one configured snapshot file.
type Snapshot struct {
	Name string
	Path string
}

// NameLookup is the suggestion call probed by CheckSuggest.
type NameLookup interface {
	Lookup(ctx context.Context, query string) ([]string, error)
}

// Target describes what RunAll checks. A nil Suggest skips the service probe.
type Target struct {
	DataDir   string
	Snapshots []Snapshot
	Suggest   NameLookup
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose      bool
	output       io.Writer
	probeTimeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithProbeTimeout bounds the suggestion service probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.probeTimeout = d
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output:       os.Stdout,
		probeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against t.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	var results []CheckResult

	if len(t.Snapshots) == 0 {
		results = append(results, CheckResult{
			Name:     "snapshots",
			Status:   StatusFail,
			Message:  "no corpus sources configured",
			Details:  "Add corpus.sources to archivesearch.yaml",
			Required: true,
		})
	}
	for _, s := range t.Snapshots {
		results = append(results, c.CheckSnapshot(s))
	}

	results = append(results, c.CheckWritePermissions(t.DataDir))
	results = append(results, c.CheckDiskSpace(t.DataDir))
	results = append(results, c.CheckFileDescriptors())

	if t.Suggest != nil {
		results = append(results, c.CheckSuggest(ctx, t.Suggest))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "archivesearch doctor")
	_, _ = fmt.Fprintln(c.output, "====================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errs []string
	for _, r := range results {
		if r.IsCritical() {
			errs = append(errs, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errs) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errs))
		for _, e := range errs {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckSnapshot loads one snapshot and reports its size and entry count.
func (c *Checker) CheckSnapshot(s Snapshot) CheckResult {
	name := s.Name
	if name == "" {
		name = filepath.Base(s.Path)
	}
	result := CheckResult{
		Name:     "snapshot:" + name,
		Required: true,
		Details:  s.Path,
	}

	info, err := os.Stat(s.Path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read %s: %v", s.Path, err)
		return result
	}
	records, err := corpus.LoadSnapshot(s.Path)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	result.Message = fmt.Sprintf("%s records, %s", humanize.Comma(int64(len(records))), humanize.IBytes(uint64(info.Size())))
	result.Status = StatusPass
	if len(records) == 0 {
		result.Status = StatusWarn
		result.Message = "snapshot is empty"
	}
	return result
}

// CheckWritePermissions checks that dir exists or can be created, and
// accepts new files.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
		Details:  dir,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	f, err := os.CreateTemp(dir, ".archivesearch-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckSuggest probes the name-suggestion service. Failures only warn
// because assisted search falls back to the default path.
func (c *Checker) CheckSuggest(ctx context.Context, names NameLookup) CheckResult {
	result := CheckResult{Name: "suggest_service"}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	start := time.Now()
	_, err := names.Lookup(ctx, "archivesearch")
	switch {
	case err == nil, errors.Is(err, suggest.ErrNoSuggestion):
		result.Status = StatusPass
		result.Message = fmt.Sprintf("reachable (%s)", time.Since(start).Round(time.Millisecond))
	default:
		result.Status = StatusWarn
		result.Message = "unreachable, assisted search will fall back"
		result.Details = err.Error()
	}
	return result
}
