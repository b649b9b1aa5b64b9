package fuzzy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ignoreLocation(threshold float64) Options {
	opts := DefaultOptions()
	opts.Threshold = threshold
	opts.IgnoreLocation = true
	return opts
}

func TestMatch_EqualTextScoresZero(t *testing.T) {
	p := Compile("Foo Bar", ignoreLocation(0.78))

	assert.Equal(t, Result{IsMatch: true, Score: 0}, p.Match("foo bar"))
}

func TestMatch_SubstringScoresFloor(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
	}{
		{"foo", "foo bar"},
		{"FOO", "foo baz"},
		{"abc", "xabcx"},
		{"浮士德", "浮士德galgame游戏合集"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.text, func(t *testing.T) {
			r := Compile(tt.pattern, ignoreLocation(0.78)).Match(tt.text)
			assert.True(t, r.IsMatch)
			assert.Equal(t, 0.001, r.Score)
		})
	}
}

func TestMatch_OneErrorIgnoringLocation(t *testing.T) {
	r := Compile("abc", ignoreLocation(0.78)).Match("abd")

	assert.True(t, r.IsMatch)
	assert.InDelta(t, 1.0/3.0, r.Score, 1e-12)
}

func TestMatch_NoSharedRunes(t *testing.T) {
	// Given: a text sharing no rune with the pattern
	p := Compile("foo", ignoreLocation(0.78))

	// When/Then: every alignment needs three errors, which is over threshold
	assert.Equal(t, Result{IsMatch: false, Score: 1}, p.Match("qux"))
}

func TestMatch_ThresholdZeroNeedsExact(t *testing.T) {
	p := Compile("abc", ignoreLocation(0))

	assert.False(t, p.Match("abd").IsMatch)
	assert.True(t, p.Match("zabc").IsMatch)
}

func TestMatch_LocationPenalty(t *testing.T) {
	// Given: default options, where distance from location 0 costs 1/100 per rune
	p := Compile("abc", DefaultOptions())

	// When: the exact occurrence starts at rune 2
	r := p.Match("xxabc")

	// Then: the score carries the proximity penalty
	assert.True(t, r.IsMatch)
	assert.InDelta(t, 0.02, r.Score, 1e-12)
}

func TestMatch_CaseSensitive(t *testing.T) {
	opts := ignoreLocation(0)
	opts.CaseSensitive = true
	p := Compile("ABC", opts)

	assert.False(t, p.Match("abc").IsMatch)
	assert.True(t, p.Match("xABC").IsMatch)
}

func TestMatch_EmptyPattern(t *testing.T) {
	p := Compile("", ignoreLocation(0.78))

	assert.Equal(t, Result{IsMatch: false, Score: 1}, p.Match("anything"))
	assert.Equal(t, Result{IsMatch: true, Score: 0}, p.Match(""))
}

func TestMatch_EmptyText(t *testing.T) {
	r := Compile("foo", ignoreLocation(0.78)).Match("")

	assert.False(t, r.IsMatch)
	assert.Equal(t, 1.0, r.Score)
}

func TestCompile_SplitsLongPatterns(t *testing.T) {
	// Given: a 70-rune pattern
	pattern := strings.Repeat("あ", 70)

	// When: compiling
	p := Compile(pattern, ignoreLocation(0.78))

	// Then: two full chunks and a trailing chunk ending at the last rune
	require.Len(t, p.chunks, 3)
	assert.Equal(t, 0, p.chunks[0].startIndex)
	assert.Equal(t, 32, p.chunks[1].startIndex)
	assert.Equal(t, 38, p.chunks[2].startIndex)
	for _, c := range p.chunks {
		assert.Len(t, c.pattern, MaxBits)
	}
}

func TestCompile_ExactMultipleOfMaxBits(t *testing.T) {
	p := Compile(strings.Repeat("x", 64), ignoreLocation(0.78))

	require.Len(t, p.chunks, 2)
	assert.Equal(t, 32, p.chunks[1].startIndex)
}

func TestMatch_LongPatternAveragesChunks(t *testing.T) {
	// Given: a 40-rune pattern whose text contains it exactly
	pattern := strings.Repeat("ab", 20)
	p := Compile(pattern, ignoreLocation(0.78))

	// When: matching a longer text
	r := p.Match("zz" + pattern + "zz")

	// Then: each chunk scores the floor, so the mean does too
	assert.True(t, r.IsMatch)
	assert.InDelta(t, 0.001, r.Score, 1e-12)
}

func TestAlphabet_BitsPerPosition(t *testing.T) {
	a := alphabet([]rune("foo"))

	assert.Equal(t, uint32(4), a['f'])
	assert.Equal(t, uint32(3), a['o'])
	assert.Equal(t, uint32(0), a['x'])
}

func TestPattern_ConcurrentUse(t *testing.T) {
	p := Compile("foo", ignoreLocation(0.78))
	done := make(chan Result, 8)

	for i := 0; i < 8; i++ {
		go func() { done <- p.Match("foo bar") }()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, 0.001, (<-done).Score)
	}
}
