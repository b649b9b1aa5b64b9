package translit

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

//go:embed dictionary/JPVariants.txt
var jpVariants string

// Variants replaces characters and phrases with their longest match in a
// table. Text without a match is kept.
type Variants struct {
	table map[string]string
	// maxLen is the longest key in runes.
	maxLen int
}

// ParseVariants reads an OpenCC text dictionary, one "from<TAB>to [alt...]"
// entry per line. The first target of an entry is used.
func ParseVariants(r io.Reader) (*Variants, error) {
	v := &Variants{table: make(map[string]string)}
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		from, to, ok := strings.Cut(text, "\t")
		targets := strings.Fields(to)
		if !ok || from == "" || len(targets) == 0 {
			return nil, fmt.Errorf("variant table line %d: want \"from<TAB>to\", got %q", line, text)
		}
		v.table[from] = targets[0]
		v.maxLen = max(v.maxLen, utf8.RuneCountInString(from))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read variant table: %w", err)
	}
	if len(v.table) == 0 {
		return nil, fmt.Errorf("variant table is empty")
	}
	return v, nil
}

var (
	jpOnce  sync.Once
	jpTable *Variants
	jpErr   error
)

// JapaneseVariants returns the bundled traditional Chinese to Japanese
// shinjitai table (OpenCC JPVariants).
func JapaneseVariants() (*Variants, error) {
	jpOnce.Do(func() {
		jpTable, jpErr = ParseVariants(strings.NewReader(jpVariants))
	})
	return jpTable, jpErr
}

// Len returns the number of entries.
func (v *Variants) Len() int {
	return len(v.table)
}

// Convert replaces every match in s, longest first. It never fails.
func (v *Variants) Convert(s string) (string, error) {
	r := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(r); {
		n := min(v.maxLen, len(r)-i)
		for ; n > 0; n-- {
			if to, ok := v.table[string(r[i:i+n])]; ok {
				b.WriteString(to)
				break
			}
		}
		if n == 0 {
			b.WriteRune(r[i])
			n = 1
		}
		i += n
	}
	return b.String(), nil
}
