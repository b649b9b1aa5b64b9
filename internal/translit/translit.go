// Package translit converts simplified Chinese queries to Japanese
// shinjitai so that both spellings of a title reach the matcher.
package translit

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/longbridgeapp/opencc"
)

// DefaultChain converts simplified Chinese to traditional with OpenCC, then
// traditional to Japanese shinjitai with the bundled variant table.
var DefaultChain = []string{"s2t", "t2jp"}

// Converter maps a query to its script-converted variant.
type Converter interface {
	Convert(s string) string
}

// step is one conversion of a Chain.
type step interface {
	Convert(s string) (string, error)
}

// builtin holds conversions the OpenCC port does not ship. Every other name
// is loaded from OpenCC.
var builtin = map[string]func() (step, error){
	"t2jp": func() (step, error) { return JapaneseVariants() },
}

// Chain applies conversions in order. It is safe for concurrent use: the
// dictionaries are read-only once loaded.
type Chain struct {
	names []string
	steps []step
}

// NewChain builds a converter for the named conversions, e.g. "s2t", "t2jp".
func NewChain(names ...string) (*Chain, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty conversion chain")
	}
	c := &Chain{names: names}
	for _, name := range names {
		var (
			s   step
			err error
		)
		if load, ok := builtin[name]; ok {
			s, err = load()
		} else {
			s, err = opencc.New(name)
		}
		if err != nil {
			return nil, fmt.Errorf("load conversion %q: %w", name, err)
		}
		c.steps = append(c.steps, s)
	}
	return c, nil
}

// Names returns the configured conversion names.
func (c *Chain) Names() []string {
	return c.names
}

// Convert returns s converted through every step. A failing step leaves the
// text as it was before that step.
func (c *Chain) Convert(s string) string {
	out := s
	for i, st := range c.steps {
		converted, err := st.Convert(out)
		if err != nil {
			slog.Debug("translit_step_failed",
				slog.String("conversion", c.names[i]),
				slog.String("error", err.Error()))
			continue
		}
		out = converted
	}
	return out
}

// Identity returns its input unchanged.
type Identity struct{}

// Convert implements Converter.
func (Identity) Convert(s string) string { return s }

var (
	defaultOnce  sync.Once
	defaultChain *Chain
	defaultErr   error
)

// LoadDefault returns the shared DefaultChain converter. Dictionaries are
// loaded on first use; a conversion that fails to load is an error, never a
// shorter chain.
func LoadDefault() (*Chain, error) {
	defaultOnce.Do(func() {
		defaultChain, defaultErr = NewChain(DefaultChain...)
	})
	return defaultChain, defaultErr
}

// Func adapts a plain function to Converter.
type Func func(string) string

// Convert implements Converter.
func (f Func) Convert(s string) string { return f(s) }
