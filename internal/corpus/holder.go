package corpus

import "sync/atomic"

// Holder publishes the current corpus. Readers take one snapshot per request
// with Load; a reload builds a new Corpus and swaps it in with Store.
type Holder struct {
	current atomic.Pointer[Corpus]
	version atomic.Uint64
}

// NewHolder returns a holder publishing c.
func NewHolder(c *Corpus) *Holder {
	h := &Holder{}
	h.Store(c)
	return h
}

// Load returns the current corpus, never nil.
func (h *Holder) Load() *Corpus {
	if c := h.current.Load(); c != nil {
		return c
	}
	return Build("")
}

// Store publishes c and bumps the version.
func (h *Holder) Store(c *Corpus) {
	if c == nil {
		c = Build("")
	}
	h.current.Store(c)
	h.version.Add(1)
}

// Version counts Store calls.
func (h *Holder) Version() uint64 {
	return h.version.Load()
}
