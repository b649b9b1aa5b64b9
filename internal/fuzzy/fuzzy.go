package fuzzy

import (
	"strings"
)

// MaxBits is the longest pattern a single bit-parallel pass can handle.
// Longer patterns are split into chunks of this many runes.
const MaxBits = 32

// Options tune matching.
type Options struct {
	// Threshold is the worst score still considered a match, in [0, 1].
	Threshold float64
	// Location is where in the text the pattern is expected to start.
	Location int
	// Distance scales the penalty for matching away from Location.
	Distance int
	// IgnoreLocation drops the distance penalty entirely.
	IgnoreLocation bool
	// CaseSensitive disables lower-casing of pattern and text.
	CaseSensitive bool
}

// DefaultOptions mirrors the Fuse.js defaults.
func DefaultOptions() Options {
	return Options{
		Threshold: 0.6,
		Location:  0,
		Distance:  100,
	}
}

// Result is the outcome of matching one text.
type Result struct {
	IsMatch bool
	Score   float64
}

type chunk struct {
	pattern    []rune
	alphabet   map[rune]uint32
	startIndex int
}

// Pattern is a compiled search pattern. It is immutable and safe for
// concurrent use.
type Pattern struct {
	raw    string
	chunks []chunk
	opts   Options
}

// Compile prepares pattern for repeated matching.
func Compile(pattern string, opts Options) *Pattern {
	if !opts.CaseSensitive {
		pattern = strings.ToLower(pattern)
	}
	p := &Pattern{raw: pattern, opts: opts}

	runes := []rune(pattern)
	n := len(runes)
	if n == 0 {
		return p
	}

	addChunk := func(rs []rune, start int) {
		p.chunks = append(p.chunks, chunk{
			pattern:    rs,
			alphabet:   alphabet(rs),
			startIndex: start,
		})
	}

	if n <= MaxBits {
		addChunk(runes, 0)
		return p
	}

	remainder := n % MaxBits
	end := n - remainder
	for i := 0; i < end; i += MaxBits {
		addChunk(runes[i:i+MaxBits], i)
	}
	if remainder > 0 {
		start := n - MaxBits
		addChunk(runes[start:], start)
	}
	return p
}

// String returns the normalised pattern.
func (p *Pattern) String() string {
	return p.raw
}

// Match scores text against the pattern. A text equal to the pattern scores
// exactly 0; otherwise the score is the mean of the chunk scores, or 1 when
// no chunk matched.
func (p *Pattern) Match(text string) Result {
	if !p.opts.CaseSensitive {
		text = strings.ToLower(text)
	}
	if text == p.raw {
		return Result{IsMatch: true, Score: 0}
	}
	if len(p.chunks) == 0 {
		return Result{IsMatch: false, Score: 1}
	}

	runes := []rune(text)
	total := 0.0
	matched := false
	for i := range p.chunks {
		r := p.chunks[i].search(runes, p.opts)
		if r.IsMatch {
			matched = true
		}
		total += r.Score
	}

	if !matched {
		return Result{IsMatch: false, Score: 1}
	}
	return Result{IsMatch: true, Score: total / float64(len(p.chunks))}
}

// alphabet maps each rune to the bit positions where it occurs, with the
// first rune in the highest bit.
func alphabet(pattern []rune) map[rune]uint32 {
	m := make(map[rune]uint32, len(pattern))
	n := len(pattern)
	for i, r := range pattern {
		m[r] |= 1 << uint(n-i-1)
	}
	return m
}
